package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/blob"
	"github.com/draftgate/draftgate/internal/platform/httpx"
)

type memoryAttachmentRepo struct {
	rows       map[int64]Attachment
	nextID     int64
	states     map[int64]RequestState
	insertErr  error
	insertions int
}

func newMemoryAttachmentRepo() *memoryAttachmentRepo {
	return &memoryAttachmentRepo{
		rows:   make(map[int64]Attachment),
		states: make(map[int64]RequestState),
	}
}

func (r *memoryAttachmentRepo) Insert(ctx context.Context, a Attachment) (Attachment, error) {
	r.insertions++
	if r.insertErr != nil {
		return Attachment{}, r.insertErr
	}
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now()
	r.rows[a.ID] = a
	return a, nil
}

func (r *memoryAttachmentRepo) Get(ctx context.Context, id int64) (Attachment, error) {
	a, ok := r.rows[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryAttachmentRepo) ListForRequest(ctx context.Context, requestID int64) ([]Attachment, error) {
	var result []Attachment
	for _, a := range r.rows {
		if a.RequestID == requestID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *memoryAttachmentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memoryAttachmentRepo) FindByStorageKey(ctx context.Context, key string) (Attachment, error) {
	for _, a := range r.rows {
		if a.StorageKey == key {
			return a, nil
		}
	}
	return Attachment{}, ErrNotFound
}

func (r *memoryAttachmentRepo) RequestState(ctx context.Context, requestID int64) (RequestState, error) {
	state, ok := r.states[requestID]
	if !ok {
		return RequestState{}, ErrNotFound
	}
	return state, nil
}

func (r *memoryAttachmentRepo) StorageKeys(ctx context.Context) ([]string, error) {
	var keys []string
	for _, a := range r.rows {
		keys = append(keys, a.StorageKey)
	}
	return keys, nil
}

var (
	alice = authz.Identity{ID: 1, Roles: []authz.Role{authz.RoleUser}}
	carol = authz.Identity{ID: 2, Roles: []authz.Role{authz.RoleUser}}
	boss  = authz.Identity{ID: 9, Roles: []authz.Role{authz.RoleAdmin}}
)

func newTestService(t *testing.T, repo *memoryAttachmentRepo) (*Service, *blob.Store) {
	t.Helper()
	store, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	signer := blob.NewSigner("test-signing-secret", blob.DefaultSignatureTTL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, store, signer, logger), store
}

func textFile(name, content string) UploadFile {
	return UploadFile{
		Name:     name,
		MimeType: "text/plain",
		Size:     int64(len(content)),
		Reader:   strings.NewReader(content),
	}
}

func TestUploadStoresObjectAndRow(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, store := newTestService(t, repo)

	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{textFile("notes.txt", "hello")})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Uploaded)
	require.Equal(t, 1, summary.Total)

	a := summary.Results[0].Attachment
	require.NotNil(t, a)
	require.Equal(t, "notes.txt", a.FileName)
	require.Equal(t, int64(5), a.SizeBytes)
	require.True(t, strings.HasPrefix(a.StorageKey, "1/5/"))
	require.True(t, strings.HasSuffix(a.StorageKey, ".txt"))

	exists, err := store.Exists(context.Background(), a.StorageKey)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestUploadSizeCeiling(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, store := newTestService(t, repo)

	atLimit := UploadFile{
		Name:     "exact.txt",
		MimeType: "text/plain",
		Size:     MaxFileSize,
		Reader:   bytes.NewReader(make([]byte, MaxFileSize)),
	}
	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{atLimit})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Uploaded)
	require.Equal(t, int64(MaxFileSize), summary.Results[0].Attachment.SizeBytes)

	overLimit := UploadFile{
		Name:     "over.txt",
		MimeType: "text/plain",
		Size:     MaxFileSize + 1,
		Reader:   bytes.NewReader(make([]byte, MaxFileSize+1)),
	}
	summary, err = svc.Upload(context.Background(), alice, 5, []UploadFile{overLimit})
	require.NoError(t, err)
	require.Zero(t, summary.Uploaded)
	require.Contains(t, summary.Results[0].Error, "exceeds")

	// The oversize file never produced an object or a row.
	count := 0
	require.NoError(t, store.Walk(context.Background(), func(info blob.ObjectInfo) error {
		count++
		return nil
	}))
	require.Equal(t, 1, count)
	require.Len(t, repo.rows, 1)
}

func TestUploadLyingSizeHeader(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, store := newTestService(t, repo)

	// Declared size fits, the body does not.
	liar := UploadFile{
		Name:     "liar.txt",
		MimeType: "text/plain",
		Size:     10,
		Reader:   bytes.NewReader(make([]byte, MaxFileSize+1)),
	}
	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{liar})
	require.NoError(t, err)
	require.Zero(t, summary.Uploaded)

	require.NoError(t, store.Walk(context.Background(), func(info blob.ObjectInfo) error {
		t.Fatalf("unexpected object %q", info.Key)
		return nil
	}))
}

func TestUploadTypeAllowList(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, _ := newTestService(t, repo)

	archive := UploadFile{
		Name:     "payload.zip",
		MimeType: "application/zip",
		Size:     4,
		Reader:   strings.NewReader("PK.."),
	}
	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{archive})
	require.NoError(t, err)
	require.Zero(t, summary.Uploaded)
	require.Equal(t, ErrUnsupportedType.Error(), summary.Results[0].Error)
}

func TestUploadPartialBatch(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, _ := newTestService(t, repo)

	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{
		textFile("good.txt", "fine"),
		{Name: "bad.bin", MimeType: "application/octet-stream", Size: 2, Reader: strings.NewReader("xx")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Uploaded)
	require.Equal(t, 2, summary.Total)
	require.NotNil(t, summary.Results[0].Attachment)
	require.NotEmpty(t, summary.Results[1].Error)
}

func TestUploadCompensatesFailedInsert(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	repo.insertErr = errors.New("connection reset")
	svc, store := newTestService(t, repo)

	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{textFile("notes.txt", "hello")})
	require.NoError(t, err)
	require.Zero(t, summary.Uploaded)
	require.Equal(t, 1, repo.insertions)

	require.NoError(t, store.Walk(context.Background(), func(info blob.ObjectInfo) error {
		t.Fatalf("orphan object %q survived compensation", info.Key)
		return nil
	}))
}

func TestUploadAuthorization(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	repo.states[6] = RequestState{OwnerID: alice.ID, Pending: false}
	svc, _ := newTestService(t, repo)

	_, err := svc.Upload(context.Background(), carol, 5, []UploadFile{textFile("a.txt", "x")})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.Upload(context.Background(), boss, 5, []UploadFile{textFile("a.txt", "x")})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.Upload(context.Background(), alice, 6, []UploadFile{textFile("a.txt", "x")})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestListVisibility(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, _ := newTestService(t, repo)

	_, err := svc.Upload(context.Background(), alice, 5, []UploadFile{textFile("a.txt", "x")})
	require.NoError(t, err)

	items, err := svc.ListForRequest(context.Background(), alice, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = svc.ListForRequest(context.Background(), boss, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.ListForRequest(context.Background(), carol, 5)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestDeleteRules(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, store := newTestService(t, repo)

	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{textFile("a.txt", "x")})
	require.NoError(t, err)
	id := summary.Results[0].Attachment.ID
	key := summary.Results[0].Attachment.StorageKey

	require.ErrorIs(t, svc.Delete(context.Background(), boss, id), httpx.ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), carol, id), httpx.ErrNotFound)

	// Once the request leaves pending, even the uploader cannot delete.
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: false}
	require.ErrorIs(t, svc.Delete(context.Background(), alice, id), httpx.ErrForbidden)

	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	require.NoError(t, svc.Delete(context.Background(), alice, id))

	exists, err := store.Exists(context.Background(), key)
	require.NoError(t, err)
	require.False(t, exists)
	require.Empty(t, repo.rows)
}

func TestSignedURLRoundTrip(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, _ := newTestService(t, repo)

	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{textFile("a.txt", "contents")})
	require.NoError(t, err)
	id := summary.Results[0].Attachment.ID

	now := time.Now()
	link, expires, err := svc.SignedURL(context.Background(), alice, id, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(blob.DefaultSignatureTTL).Unix(), expires.Unix())

	parsed, err := url.Parse(link)
	require.NoError(t, err)

	a, reader, err := svc.Download(context.Background(), parsed.Query(), now.Add(30*time.Second))
	require.NoError(t, err)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "contents", string(body))
	require.Equal(t, "a.txt", a.FileName)

	// Expired link.
	_, _, err = svc.Download(context.Background(), parsed.Query(), now.Add(61*time.Second))
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// Tampered key.
	tampered := parsed.Query()
	tampered.Set("key", "2/9/other.txt")
	_, _, err = svc.Download(context.Background(), tampered, now)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// Strangers cannot mint links.
	_, _, err2 := svc.Download(context.Background(), url.Values{}, now)
	require.ErrorIs(t, err2, httpx.ErrForbidden)
	_, _, err = svc.SignedURL(context.Background(), carol, id, now)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestFilenameNormalization(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	repo.states[5] = RequestState{OwnerID: alice.ID, Pending: true}
	svc, _ := newTestService(t, repo)

	decomposed := "re\u0301sume\u0301.txt"
	summary, err := svc.Upload(context.Background(), alice, 5, []UploadFile{textFile(decomposed, "x")})
	require.NoError(t, err)
	require.Equal(t, norm.NFC.String(decomposed), summary.Results[0].Attachment.FileName)
	require.Equal(t, "r\u00e9sum\u00e9.txt", summary.Results[0].Attachment.FileName)

	summary, err = svc.Upload(context.Background(), alice, 5, []UploadFile{textFile(`C:\Users\alice\notes.txt`, "x")})
	require.NoError(t, err)
	require.Equal(t, "notes.txt", summary.Results[0].Attachment.FileName)
}
