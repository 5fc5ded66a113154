package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_catalog/internal/domain"
)

// newOfflineMinIO points at a port nothing listens on, so only the local
// staging side of the store does any work.
func newOfflineMinIO(t *testing.T) *MinIO {
	t.Helper()
	client, err := minio.New("127.0.0.1:1", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinIO{client: client, bucket: "catalog", tempDir: t.TempDir()}
}

func TestMinIORejectsInvalidKeys(t *testing.T) {
	m := newOfflineMinIO(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape.txt", ".hidden", "a..b.png", "dir/file.png"} {
		_, err := m.Stage(ctx, key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)

		_, err = m.Open(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, key)

		assert.ErrorIs(t, m.Remove(ctx, key), ErrInvalidKey, key)
	}
	assert.Empty(t, dirEntries(t, m.tempDir))
}

func TestMinIODiscardRemovesTempFile(t *testing.T) {
	m := newOfflineMinIO(t)

	st, err := m.Stage(context.Background(), "ab12cd34_sofa.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "ab12cd34_sofa.png", st.Key())
	assert.Equal(t, int64(len("png-bytes")), st.Size())
	assert.Len(t, dirEntries(t, m.tempDir), 1)

	require.NoError(t, st.Discard())
	assert.Empty(t, dirEntries(t, m.tempDir))
	require.NoError(t, st.Discard())
	assert.Error(t, st.Commit(context.Background()))
}

func TestMinIOFailedCommitKeepsStagedFileUntilDiscard(t *testing.T) {
	m := newOfflineMinIO(t)

	st, err := m.Stage(context.Background(), "brochure.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, st.Commit(ctx))
	assert.Len(t, dirEntries(t, m.tempDir), 1)

	require.NoError(t, st.Discard())
	assert.Empty(t, dirEntries(t, m.tempDir))
}

func TestMinIOStageHonoursCancelledContext(t *testing.T) {
	m := newOfflineMinIO(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Stage(ctx, "clip.mp4", strings.NewReader("frames"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirEntries(t, m.tempDir))
}
