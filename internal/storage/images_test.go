package storage

import (
	"encoding/base64"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fakeJPEG = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("jfif-body")...)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), 1024)
	require.NoError(t, err)

	id, err := store.SaveBase64(base64.StdEncoding.EncodeToString(fakeJPEG))
	require.NoError(t, err)

	f, err := store.Open(id)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, fakeJPEG, data)
}

func TestSaveAcceptsDataURL(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), 1024)
	require.NoError(t, err)

	_, err = store.SaveBase64("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(fakeJPEG))
	require.NoError(t, err)
}

func TestSaveRejectsInvalidImages(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), 8)
	require.NoError(t, err)

	_, err = store.Save([]byte("not a jpeg"))
	require.ErrorIs(t, err, ErrImageTooLarge)

	_, err = store.Save([]byte("png"))
	require.ErrorIs(t, err, ErrNotJPEG)

	_, err = store.SaveBase64("%%%")
	require.Error(t, err)
}

func TestOpenMissing(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), 1024)
	require.NoError(t, err)

	_, err = store.Open(uuid.NewString())
	require.ErrorIs(t, err, ErrImageNotFound)

	_, err = store.Open("../../etc/passwd")
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestDelete(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), 1024)
	require.NoError(t, err)

	id, err := store.Save(fakeJPEG)
	require.NoError(t, err)
	require.NoError(t, store.Delete(id))

	_, err = store.Open(id)
	require.ErrorIs(t, err, ErrImageNotFound)

	require.NoError(t, store.Delete(id))
	require.NoError(t, store.Delete("not-an-id"))
}
