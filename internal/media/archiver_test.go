package media

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/testutil"
)

func TestClassify(t *testing.T) {
	images := []string{".jpg", ".JPG", ".jpeg", ".Jpeg", ".png", ".PNG", ".gif", ".GiF"}
	for _, ext := range images {
		assert.Equal(t, models.MediaImage, Classify(ext), ext)
	}
	videos := []string{".mp4", ".mov", ".webp", ".m3u8", "", ".jpgx"}
	for _, ext := range videos {
		assert.Equal(t, models.MediaVideo, Classify(ext), ext)
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		url  string
		want string
		kind models.MediaKind
	}{
		{"https://pbs.twimg.com/media/Fabc123.jpg", "Media/Images/Fabc123.jpg", models.MediaImage},
		{"https://pbs.twimg.com/media/Fabc123.PNG?name=orig", "Media/Images/Fabc123.PNG", models.MediaImage},
		{"https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/clip.mp4?tag=12", "Media/Videos/clip.mp4", models.MediaVideo},
		{"https://pbs.twimg.com/media/XYZ?format=jpg&name=large", "Media/Images/XYZ.jpg", models.MediaImage},
		{"https://pbs.twimg.com/media/no-extension", "Media/Videos/no-extension", models.MediaVideo},
	}
	for _, tt := range tests {
		got, kind, err := Target(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.url)
		assert.Equal(t, tt.kind, kind, tt.url)
	}
}

func TestTarget_EmptyStemFallsBackToChecksum(t *testing.T) {
	got, _, err := Target("https://cdn.example.com/%21%21%21.gif")
	require.NoError(t, err)
	assert.Regexp(t, `^Media/Images/[0-9a-f]{12}\.gif$`, got)
}

func TestArchive_DownloadsOnceAndKeepsOrder(t *testing.T) {
	_, store := testutil.TestVault(t)
	getter := testutil.NewStubGetter().
		On("https://m.example/a.jpg", http.StatusOK, "jpeg-bytes").
		On("https://m.example/b.mp4", http.StatusOK, "mp4-bytes")
	a := NewArchiver(store, getter, testutil.Logger(), nil)

	refs := []models.MediaRef{{SourceURL: "https://m.example/b.mp4"}, {SourceURL: "https://m.example/a.jpg"}}
	got := a.Archive(context.Background(), refs)
	require.Len(t, got, 2)
	assert.Equal(t, "Media/Videos/b.mp4", got[0].Path)
	assert.Equal(t, "Media/Images/a.jpg", got[1].Path)

	data, err := store.Read("Media/Images/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	again := a.Archive(context.Background(), refs)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, getter.CallCount("https://m.example/a.jpg"))
	assert.Equal(t, 1, getter.CallCount("https://m.example/b.mp4"))
}

func TestArchive_ExistingFileSkipsNetwork(t *testing.T) {
	_, store := testutil.TestVault(t)
	require.NoError(t, store.Write("Media/Images/pre.png", []byte("old")))
	getter := testutil.NewStubGetter()
	a := NewArchiver(store, getter, testutil.Logger(), nil)

	got := a.Archive(context.Background(), []models.MediaRef{{SourceURL: "https://m.example/pre.png"}})
	require.Len(t, got, 1)
	assert.Empty(t, getter.Calls())
	data, _ := store.Read("Media/Images/pre.png")
	assert.Equal(t, "old", string(data))
}

func TestArchive_OneBadItemKeepsOthers(t *testing.T) {
	_, store := testutil.TestVault(t)
	getter := testutil.NewStubGetter().
		On("https://m.example/ok1.jpg", http.StatusOK, "1").
		On("https://m.example/gone.jpg", http.StatusNotFound, "").
		On("https://m.example/ok2.gif", http.StatusOK, "2")
	a := NewArchiver(store, getter, testutil.Logger(), nil)

	got := a.Archive(context.Background(), []models.MediaRef{
		{SourceURL: "https://m.example/ok1.jpg"},
		{SourceURL: "https://m.example/gone.jpg"},
		{SourceURL: "https://m.example/unrouted.mp4"},
		{SourceURL: "https://m.example/ok2.gif"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Media/Images/ok1.jpg", got[0].Path)
	assert.Equal(t, "Media/Images/ok2.gif", got[1].Path)

	exists, _ := store.Exists("Media/Images/gone.jpg")
	assert.False(t, exists, "failed download must not leave a file")
}
