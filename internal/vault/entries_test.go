package vault_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/pwtrainer/internal/vault"
	"github.com/Hussein-Mazeh/pwtrainer/krypto"
)

var fastParams = krypto.Params{Algorithm: krypto.AlgorithmArgon2id, Time: 1, MemoryKiB: 64, Threads: 1}

func newStore(t *testing.T) *vault.Store {
	t.Helper()
	st, err := vault.New(fastParams)
	require.NoError(t, err)
	return st
}

func check(t *testing.T, st *vault.Store, label, candidate string) bool {
	t.Helper()
	ok, err := st.Check(label, candidate)
	require.NoError(t, err)
	return ok
}

func TestNewStoreIsEmpty(t *testing.T) {
	st := newStore(t)
	assert.Equal(t, 0, st.Len())
	assert.Empty(t, st.Labels())

	hdr := st.Header()
	assert.Equal(t, vault.FormatVersion, hdr.Version)
	assert.Len(t, hdr.Salt, krypto.SaltLengthBytes)
	assert.Equal(t, fastParams, hdr.KDF)
}

func TestNewRejectsBadParams(t *testing.T) {
	_, err := vault.New(krypto.Params{})
	require.ErrorIs(t, err, krypto.ErrHashing)
}

func TestInsertAndCheck(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("email", "Sn0wman!"))

	assert.True(t, check(t, st, "email", "Sn0wman!"))
	assert.False(t, check(t, st, "email", "wrong"))

	e, ok := st.Lookup("email")
	require.True(t, ok)
	assert.Len(t, e.Salt, krypto.SaltLengthBytes)
	assert.Len(t, e.Digest, krypto.DigestLengthBytes)
	assert.Equal(t, fastParams, e.KDF)
}

func TestInsertDuplicateLabel(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("email", "Sn0wman!"))

	err := st.Insert("email", "other")
	require.ErrorIs(t, err, vault.ErrDuplicateLabel)
	assert.Equal(t, 1, st.Len())
	assert.True(t, check(t, st, "email", "Sn0wman!"))
}

func TestInsertInvalidLabel(t *testing.T) {
	st := newStore(t)
	for _, label := range []string{"", "tab\there", "nl\n", string([]byte{0xff, 0xfe}), strings.Repeat("a", 1<<16)} {
		require.ErrorIs(t, st.Insert(label, "pw"), vault.ErrInvalidLabel)
	}
	assert.Equal(t, 0, st.Len())
}

func TestSetParamsRejectsInvalid(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("email", "Sn0wman!"))

	err := st.SetParams(krypto.Params{Algorithm: 7, Time: 1, MemoryKiB: 64, Threads: 1})
	require.ErrorIs(t, err, krypto.ErrHashing)
	assert.Equal(t, fastParams, st.Params())
}

func TestUpdateRotatesSaltAndPreservesPosition(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("bank", "first"))
	require.NoError(t, st.Insert("email", "Sn0wman!"))
	require.NoError(t, st.Insert("forum", "third"))

	old, _ := st.Lookup("email")
	require.NoError(t, st.Update("email", "NewPass1"))
	updated, _ := st.Lookup("email")

	assert.NotEqual(t, old.Salt, updated.Salt)
	assert.NotEqual(t, old.Digest, updated.Digest)
	assert.False(t, check(t, st, "email", "Sn0wman!"))
	assert.True(t, check(t, st, "email", "NewPass1"))
	assert.Equal(t, []string{"bank", "email", "forum"}, st.Labels())
}

func TestUpdateSamePasswordStillRotatesSalt(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("email", "Sn0wman!"))
	old, _ := st.Lookup("email")

	require.NoError(t, st.Update("email", "Sn0wman!"))
	updated, _ := st.Lookup("email")
	assert.NotEqual(t, old.Salt, updated.Salt)
	assert.True(t, check(t, st, "email", "Sn0wman!"))
}

func TestUpdateMissingLabel(t *testing.T) {
	st := newStore(t)
	require.ErrorIs(t, st.Update("ghost", "pw"), vault.ErrLabelNotFound)
}

func TestRemove(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("a", "1"))
	require.NoError(t, st.Insert("b", "2"))
	require.NoError(t, st.Insert("c", "3"))

	require.NoError(t, st.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, st.Labels())
	assert.False(t, st.Contains("b"))
}

func TestRemoveMissingIsRepeatable(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("email", "Sn0wman!"))
	before := st.Entries()

	err1 := st.Remove("ghost")
	err2 := st.Remove("ghost")
	require.ErrorIs(t, err1, vault.ErrLabelNotFound)
	require.ErrorIs(t, err2, vault.ErrLabelNotFound)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.Equal(t, before, st.Entries())
}

func TestCheckMissingLabel(t *testing.T) {
	st := newStore(t)
	_, err := st.Check("ghost", "pw")
	require.ErrorIs(t, err, vault.ErrLabelNotFound)
}

func TestLabelsKeepInsertionOrder(t *testing.T) {
	st := newStore(t)
	for _, l := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, st.Insert(l, "pw-"+l))
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, st.Labels())
}

func TestEntriesAreCopies(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("email", "Sn0wman!"))

	entries := st.Entries()
	entries[0].Digest[0] ^= 0xff
	entries[0].Label = "changed"

	assert.True(t, check(t, st, "email", "Sn0wman!"))
	assert.Equal(t, []string{"email"}, st.Labels())
}

func TestSetParamsAppliesToNewEntriesOnly(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Insert("old", "pw-old"))

	next := fastParams
	next.Time = 2
	require.NoError(t, st.SetParams(next))
	require.NoError(t, st.Insert("new", "pw-new"))

	oldEntry, _ := st.Lookup("old")
	newEntry, _ := st.Lookup("new")
	assert.Equal(t, fastParams, oldEntry.KDF)
	assert.Equal(t, next, newEntry.KDF)
	assert.True(t, check(t, st, "old", "pw-old"))
	assert.True(t, check(t, st, "new", "pw-new"))
	assert.Equal(t, fastParams, st.Header().KDF)
}

func TestFingerprintNeverRejects(t *testing.T) {
	st := newStore(t)

	right, err := st.Fingerprint("correct horse")
	require.NoError(t, err)
	wrong, err := st.Fingerprint("battery staple")
	require.NoError(t, err)

	assert.Len(t, right, 6)
	assert.Len(t, wrong, 6)
	assert.NotEqual(t, right, wrong)

	again, err := st.Fingerprint("correct horse")
	require.NoError(t, err)
	assert.Equal(t, right, again)
}
