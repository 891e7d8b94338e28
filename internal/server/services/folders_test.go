package services

import (
	"sync"
	"testing"

	"github.com/dmitrijs2005/cloudvault/internal/common"
	"github.com/dmitrijs2005/cloudvault/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder_Defaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	folder, err := f.folders.CreateFolder(t.Context(), alice, CreateFolderInput{Name: "  Docs  "})
	require.NoError(t, err)

	assert.Equal(t, "Docs", folder.Name)
	assert.Nil(t, folder.ParentID)
	assert.Equal(t, alice, folder.UserID)
	assert.Equal(t, []string{models.AllFileTypes}, folder.AllowedFileTypes)
	assert.Equal(t, models.ConfidentialityInternal, folder.Confidentiality)
	assert.Equal(t, models.ImportanceMedium, folder.Importance)
	assert.True(t, folder.AllowSharing)
	assert.True(t, f.blobExists(t, "user-files/"+alice+"/folders/"+folder.ID+"/"))

	evs, err := f.analytics.QueryEvents(t.Context(), alice, EventFilter{EventType: models.EventFolderCreate})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, folder.ID, evs[0].EventData["folderId"])
}

func TestCreateFolder_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	other := f.mustFolder(t, bob, "Bob's", nil)

	tests := []struct {
		name string
		in   CreateFolderInput
		want error
	}{
		{"blank name", CreateFolderInput{Name: "   "}, common.ErrInvalidArgument},
		{"bad confidentiality", CreateFolderInput{Name: "x", Confidentiality: "secret"}, common.ErrInvalidArgument},
		{"bad importance", CreateFolderInput{Name: "x", Importance: "urgent"}, common.ErrInvalidArgument},
		{"bad file type", CreateFolderInput{Name: "x", AllowedFileTypes: []string{"spreadsheets"}}, common.ErrInvalidArgument},
		{"missing parent", CreateFolderInput{Name: "x", ParentID: ptr("0b8f1c62-6c1c-4a7e-9a55-1f6b6c1f0d11")}, common.ErrNotFound},
		{"malformed parent", CreateFolderInput{Name: "x", ParentID: ptr("nope")}, common.ErrNotFound},
		{"foreign parent", CreateFolderInput{Name: "x", ParentID: &other.ID}, common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.folders.CreateFolder(t.Context(), alice, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	all, err := f.folders.ListAllFolders(t.Context(), alice)
	require.NoError(t, err)
	assert.Empty(t, all, "failed validation must not persist anything")
}

func TestCreateFolder_FileTypesNormalised(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	folder, err := f.folders.CreateFolder(t.Context(), alice, CreateFolderInput{
		Name:             "Pics",
		AllowedFileTypes: []string{" Image ", "image", "video"},
		Confidentiality:  models.ConfidentialityRestricted,
		Importance:       models.ImportanceCritical,
		AllowSharing:     ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"image", "video"}, folder.AllowedFileTypes)
	assert.False(t, folder.AllowSharing)

	folder, err = f.folders.CreateFolder(t.Context(), alice, CreateFolderInput{
		Name: "Any", AllowedFileTypes: []string{"image", "all"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.AllFileTypes}, folder.AllowedFileTypes)
}

func TestCreateFolder_PlaceholderFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.blobs.setFailAll(true)

	folder, err := f.folders.CreateFolder(t.Context(), alice, CreateFolderInput{Name: "Docs"})
	require.NoError(t, err)

	got, err := f.folders.GetFolder(t.Context(), alice, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, folder.ID, got.ID)
}

func TestListFolders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	a := f.mustFolder(t, alice, "A", nil)
	b := f.mustFolder(t, alice, "B", nil)
	child := f.mustFolder(t, alice, "A1", &a.ID)
	f.mustFolder(t, bob, "Bob", nil)

	roots, err := f.folders.ListFolders(t.Context(), alice, nil)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, b.ID, roots[0].ID, "newest first")
	assert.Equal(t, a.ID, roots[1].ID)

	kids, err := f.folders.ListFolders(t.Context(), alice, &a.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, child.ID, kids[0].ID)

	none, err := f.folders.ListFolders(t.Context(), alice, &child.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := f.folders.ListAllFolders(t.Context(), alice)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetFolder_OwnershipIsolation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	folder := f.mustFolder(t, alice, "Private", nil)

	_, err := f.folders.GetFolder(t.Context(), bob, folder.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.folders.GetFolderPath(t.Context(), bob, folder.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.folders.DeleteFolder(t.Context(), bob, folder.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	kids, err := f.folders.ListFolders(t.Context(), bob, &folder.ID)
	require.NoError(t, err)
	assert.Empty(t, kids)

	_, err = f.folders.GetFolder(t.Context(), alice, folder.ID)
	assert.NoError(t, err)
}

func TestGetFolderPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	root := f.mustFolder(t, alice, "root", nil)
	mid := f.mustFolder(t, alice, "mid", &root.ID)
	leaf := f.mustFolder(t, alice, "leaf", &mid.ID)

	path, err := f.folders.GetFolderPath(t.Context(), alice, leaf.ID)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, []string{"root", "mid", "leaf"}, []string{path[0].Name, path[1].Name, path[2].Name})

	path, err = f.folders.GetFolderPath(t.Context(), alice, root.ID)
	require.NoError(t, err)
	assert.Len(t, path, 1)
}

func TestCreateFolder_DepthLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var parent *string
	var chain []*models.Folder
	for range MaxFolderDepth {
		folder := f.mustFolder(t, alice, "level", parent)
		chain = append(chain, folder)
		parent = &folder.ID
	}

	path, err := f.folders.GetFolderPath(t.Context(), alice, chain[MaxFolderDepth-1].ID)
	require.NoError(t, err)
	assert.Len(t, path, MaxFolderDepth)

	_, err = f.folders.CreateFolder(t.Context(), alice, CreateFolderInput{Name: "too deep", ParentID: parent})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	all, err := f.folders.ListAllFolders(t.Context(), alice)
	require.NoError(t, err)
	assert.Len(t, all, MaxFolderDepth)
}

// seedChain writes a chain of n nested folders straight into the store,
// bypassing the depth check in CreateFolder.
func seedChain(t *testing.T, f *fixture, userID string, n int) []*models.Folder {
	t.Helper()
	var parent *string
	chain := make([]*models.Folder, 0, n)
	for range n {
		folder := &models.Folder{
			ID:               uuid.NewString(),
			Name:             "level",
			ParentID:         parent,
			UserID:           userID,
			AllowedFileTypes: []string{models.AllFileTypes},
			Confidentiality:  models.ConfidentialityInternal,
			Importance:       models.ImportanceMedium,
			AllowSharing:     true,
		}
		require.NoError(t, f.mem.Folders().Create(t.Context(), folder))
		chain = append(chain, folder)
		parent = &folder.ID
	}
	return chain
}

func TestGetFolderPath_CorruptChain(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	chain := seedChain(t, f, alice, MaxFolderDepth+1)
	_, err := f.folders.GetFolderPath(t.Context(), alice, chain[MaxFolderDepth].ID)
	assert.ErrorIs(t, err, common.ErrCorruptHierarchy)

	_, err = f.folders.CreateFolder(t.Context(), alice, CreateFolderInput{Name: "child", ParentID: &chain[MaxFolderDepth].ID})
	assert.ErrorIs(t, err, common.ErrCorruptHierarchy)
}

func TestDeleteFolder_ChainBeyondDepthLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	chain := seedChain(t, f, alice, MaxFolderDepth+5)
	deepest := chain[len(chain)-1]
	file := f.mustUpload(t, alice, "deep.txt", []byte("abcde"), &deepest.ID)
	require.Equal(t, int64(5), f.storageUsed(t, alice))

	res, err := f.folders.DeleteFolder(t.Context(), alice, chain[0].ID)
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Len(t, res.Succeeded, len(chain)+1)

	all, err := f.folders.ListAllFolders(t.Context(), alice)
	require.NoError(t, err)
	assert.Empty(t, all)

	files, err := f.files.ListFiles(t.Context(), alice, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.False(t, f.blobExists(t, file.StorageKey))
	assert.Equal(t, int64(0), f.storageUsed(t, alice))
}

func TestDeleteFolder_Cascade(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	docs := f.mustFolder(t, alice, "Docs", nil)
	sub := f.mustFolder(t, alice, "Sub", &docs.ID)
	deep := f.mustFolder(t, alice, "Deep", &sub.ID)
	keep := f.mustFolder(t, alice, "Keep", nil)

	f1 := f.mustUpload(t, alice, "f1.txt", []byte("one"), &docs.ID)
	f2 := f.mustUpload(t, alice, "f2.txt", []byte("two!"), &docs.ID)
	f3 := f.mustUpload(t, alice, "f3.txt", []byte("three"), &deep.ID)
	kept := f.mustUpload(t, alice, "kept.txt", []byte("stay"), &keep.ID)
	require.Equal(t, int64(3+4+5+4), f.storageUsed(t, alice))

	res, err := f.folders.DeleteFolder(t.Context(), alice, docs.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Len(t, res.Succeeded, 6, "three folders and three files")

	for _, file := range []*models.File{f1, f2, f3} {
		_, err := f.files.GetFile(t.Context(), alice, file.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.False(t, f.blobExists(t, file.StorageKey))
	}
	for _, folder := range []*models.Folder{docs, sub, deep} {
		_, err := f.folders.GetFolder(t.Context(), alice, folder.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.False(t, f.blobExists(t, "user-files/"+alice+"/folders/"+folder.ID+"/"))
	}

	all, err := f.folders.ListAllFolders(t.Context(), alice)
	require.NoError(t, err)
	require.Len(t, all, 1, "no orphaned subfolders remain")
	assert.Equal(t, keep.ID, all[0].ID)

	_, err = f.files.GetFile(t.Context(), alice, kept.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), f.storageUsed(t, alice))
}

func TestDeleteFolder_PartialFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	docs := f.mustFolder(t, alice, "Docs", nil)
	stuck := f.mustUpload(t, alice, "stuck.txt", []byte("aaaa"), &docs.ID)
	gone := f.mustUpload(t, alice, "gone.txt", []byte("bb"), &docs.ID)
	f.blobs.failDeleteOf(stuck.StorageKey)

	res, err := f.folders.DeleteFolder(t.Context(), alice, docs.ID)
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, stuck.ID, res.Failed[0].ID)
	assert.Equal(t, kindFile, res.Failed[0].Kind)
	assert.ErrorIs(t, res.Failed[0].Err, common.ErrDependencyUnavailable)
	assert.NotEmpty(t, res.Failed[0].Error)

	_, err = f.files.GetFile(t.Context(), alice, gone.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// The file whose blob could not be removed keeps its record and quota.
	_, err = f.files.GetFile(t.Context(), alice, stuck.ID)
	assert.NoError(t, err)
	assert.True(t, f.blobExists(t, stuck.StorageKey))
	assert.Equal(t, int64(4), f.storageUsed(t, alice))
}

func TestDeleteFolder_ConcurrentDeletesOneWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	docs := f.mustFolder(t, alice, "Docs", nil)
	f.mustUpload(t, alice, "a.txt", []byte("abc"), &docs.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.folders.DeleteFolder(t.Context(), alice, docs.ID)
		}()
	}
	wg.Wait()

	var ok, notFound int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, common.ErrNotFound):
			notFound++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, notFound)
	assert.Equal(t, int64(0), f.storageUsed(t, alice))
}

func TestDeleteFolder_Twice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	docs := f.mustFolder(t, alice, "Docs", nil)

	_, err := f.folders.DeleteFolder(t.Context(), alice, docs.ID)
	require.NoError(t, err)
	_, err = f.folders.DeleteFolder(t.Context(), alice, docs.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDescendants_PostOrder(t *testing.T) {
	t.Parallel()

	id := func(s string) *string { return &s }
	all := []*models.Folder{
		{ID: "r"},
		{ID: "a", ParentID: id("r")},
		{ID: "a1", ParentID: id("a")},
		{ID: "b", ParentID: id("r")},
		{ID: "x"},
	}
	var got []string
	for _, f := range descendants("r", all) {
		got = append(got, f.ID)
	}
	assert.Equal(t, []string{"a1", "a", "b"}, got)
}
