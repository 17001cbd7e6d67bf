package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	key := []byte("tipping/season/1")
	require.NoError(t, db.Put(key, []byte("payload")))

	got, err := db.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	ok, err := db.Has(key)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete(key))
	_, err = db.Get(key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte{0x01, 0x02}
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 0xFF

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, got)

	got[1] = 0xFF
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, again)
}
