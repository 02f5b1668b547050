package epaper

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/bodgit/epaper/diffuse"
	"github.com/bodgit/epaper/pack"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *FrameDB {
	t.Helper()
	db, err := NewFrameDB(filepath.Join(t.TempDir(), "frames.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func testBuffer(t *testing.T) *pack.Buffer {
	t.Helper()
	ib := diffuse.NewIndexBuffer(5, 2)
	for i := range ib.Pix {
		ib.Pix[i] = uint8(i % 3)
	}
	b, err := pack.Pack(ib, 2, pack.LSBFirst)
	require.NoError(t, err)
	return b
}

func TestFrameDB(t *testing.T) {
	db := newTestDB(t)
	b := testBuffer(t)

	f, err := db.FindFrame("ABCD", "gray4")
	require.NoError(t, err)
	assert.Nil(t, f)

	id, added, err := db.AddFrame("ABCD", "gray4", "test.png", b)
	require.NoError(t, err)
	assert.True(t, added)
	assert.NotEqual(t, uuid.Nil, id)

	again, added, err := db.AddFrame("ABCD", "gray4", "copy.png", b)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, id, again)

	other, added, err := db.AddFrame("ABCD", "gray16", "test.png", b)
	require.NoError(t, err)
	assert.True(t, added)
	assert.NotEqual(t, id, other)

	f, err = db.FindFrame("ABCD", "gray4")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, id, f.ID)
	assert.Equal(t, "test.png", f.Name)
	assert.Equal(t, b, f.Buffer)

	f, err = db.Frame(other)
	require.NoError(t, err)
	assert.Equal(t, "gray16", f.Profile)
	assert.Equal(t, pack.Config{
		Width:        5,
		Height:       2,
		BitsPerPixel: 2,
		Stride:       2,
		Order:        pack.LSBFirst,
	}, f.Config)

	frames, err := db.Frames()
	require.NoError(t, err)
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Nil(t, f.Buffer)
		assert.Equal(t, "ABCD", f.SHA1)
	}

	require.NoError(t, db.DeleteFrame(id))

	_, err = db.Frame(id)
	assert.ErrorIs(t, err, ErrFrameNotFound)
	assert.ErrorIs(t, db.DeleteFrame(id), ErrFrameNotFound)

	frames, err = db.Frames()
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestFrameDBReopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "frames.db")
	b := testBuffer(t)

	db, err := NewFrameDB(file)
	require.NoError(t, err)
	id, _, err := db.AddFrame("1234", "", "a.png", b)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewFrameDB(file)
	require.NoError(t, err)
	defer db.Close()

	f, err := db.Frame(id)
	require.NoError(t, err)
	assert.Equal(t, b.Pix, f.Buffer.Pix)
}

func TestFramesSkipsPixelData(t *testing.T) {
	db := newTestDB(t)
	b := testBuffer(t)

	id, _, err := db.AddFrame("ABCD", "gray4", "test.png", b)
	require.NoError(t, err)

	// Break the checksum in the stored container
	data, err := b.MarshalBinary()
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[12:], ^binary.LittleEndian.Uint32(data[12:]))
	_, err = db.db.Exec("UPDATE frame SET data = ? WHERE id = ?", db.enc.EncodeAll(data, nil), id.String())
	require.NoError(t, err)

	frames, err := db.Frames()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Nil(t, frames[0].Buffer)
	assert.Equal(t, pack.Config{
		Width:        5,
		Height:       2,
		BitsPerPixel: 2,
		Stride:       2,
		Order:        pack.LSBFirst,
	}, frames[0].Config)

	_, err = db.Frame(id)
	assert.ErrorIs(t, err, pack.ErrChecksum)
}
