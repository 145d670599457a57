package s3store

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm-sub008/internal/errs"
	"github.com/shimomut/tfm-sub008/internal/metadatacache"
	"github.com/shimomut/tfm-sub008/internal/vpath"
)

// fakeClient is a narrow in-memory stand-in for the subset of the AWS S3
// API s3store.Client needs, grounded on the teacher's own habit of testing
// backend/s3 against a faked transport in backend/s3/s3_test.go rather than
// a real bucket.
type fakeClient struct {
	objects   map[string][]byte
	modTimes  map[string]time.Time
	listCalls int
	headCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, modTimes: map[string]time.Time{}}
}

func (c *fakeClient) put(key string, body string, modTime time.Time) {
	c.objects[key] = []byte(body)
	c.modTimes[key] = modTime
}

func (c *fakeClient) ListObjectsV2WithContext(ctx aws.Context, in *s3.ListObjectsV2Input, opts ...interface{}) (*s3.ListObjectsV2Output, error) {
	c.listCalls++
	prefix := aws.StringValue(in.Prefix)
	delim := aws.StringValue(in.Delimiter)

	var keys []string
	for k := range c.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seenPrefixes := map[string]bool{}
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if idx := strings.Index(rest, delim); idx >= 0 {
				cp := prefix + rest[:idx+len(delim)]
				if !seenPrefixes[cp] {
					seenPrefixes[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, &s3.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		mt := c.modTimes[k]
		out.Contents = append(out.Contents, &s3.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(c.objects[k]))),
			LastModified: aws.Time(mt),
			ETag:         aws.String(`"etag-` + k + `"`),
		})
		if in.MaxKeys != nil && int64(len(out.Contents)) >= aws.Int64Value(in.MaxKeys) {
			break
		}
	}
	out.IsTruncated = aws.Bool(false)
	return out, nil
}

func (c *fakeClient) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, opts ...interface{}) (*s3.HeadObjectOutput, error) {
	c.headCalls++
	key := aws.StringValue(in.Key)
	body, ok := c.objects[key]
	if !ok {
		return nil, awserr.NewRequestFailure(awserr.New(s3.ErrCodeNoSuchKey, "not found", nil), 404, "req-id")
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(body))),
		LastModified:  aws.Time(c.modTimes[key]),
		ETag:          aws.String(`"etag-` + key + `"`),
	}, nil
}

func (c *fakeClient) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...interface{}) (*s3.GetObjectOutput, error) {
	key := aws.StringValue(in.Key)
	body, ok := c.objects[key]
	if !ok {
		return nil, awserr.NewRequestFailure(awserr.New(s3.ErrCodeNoSuchKey, "not found", nil), 404, "req-id")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (c *fakeClient) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...interface{}) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	c.objects[aws.StringValue(in.Key)] = data
	c.modTimes[aws.StringValue(in.Key)] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (c *fakeClient) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, opts ...interface{}) (*s3.DeleteObjectOutput, error) {
	delete(c.objects, aws.StringValue(in.Key))
	delete(c.modTimes, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (c *fakeClient) DeleteObjectsWithContext(ctx aws.Context, in *s3.DeleteObjectsInput, opts ...interface{}) (*s3.DeleteObjectsOutput, error) {
	for _, obj := range in.Delete.Objects {
		delete(c.objects, aws.StringValue(obj.Key))
		delete(c.modTimes, aws.StringValue(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (c *fakeClient) CopyObjectWithContext(ctx aws.Context, in *s3.CopyObjectInput, opts ...interface{}) (*s3.CopyObjectOutput, error) {
	source := aws.StringValue(in.CopySource)
	idx := strings.Index(source, "/")
	srcKey := source[idx+1:]
	body, ok := c.objects[srcKey]
	if !ok {
		return nil, awserr.NewRequestFailure(awserr.New(s3.ErrCodeNoSuchKey, "not found", nil), 404, "req-id")
	}
	c.objects[aws.StringValue(in.Key)] = body
	c.modTimes[aws.StringValue(in.Key)] = time.Now()
	return &s3.CopyObjectOutput{}, nil
}

func newTestBackend(client *fakeClient) *Backend {
	return NewBackendWithClient(client, metadatacache.New(0, nil))
}

// TestVirtualDirStatResolvesDeepChildrenMtime is spec.md §8 scenario 1: a
// CommonPrefix under the listed prefix (a/b/ under a/), whose files sit two
// levels below a/, must resolve to the true max child mtime, with no extra network calls
// once the subtree has been listed.
func TestVirtualDirStatResolvesDeepChildrenMtime(t *testing.T) {
	client := newFakeClient()
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	client.put("a/b/f1.txt", "one", t1)
	client.put("a/b/f2.txt", "two", t2)

	backend := newTestBackend(client)
	root := backend.Path("bkt", "a/")

	it, err := root.Iterdir(context.Background())
	require.NoError(t, err)
	var sawVirtualDir bool
	for {
		child, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		if child.Name() == "b" {
			sawVirtualDir = true
			st, err := child.Stat(context.Background())
			require.NoError(t, err)
			assert.Equal(t, vpath.KindVirtualDir, st.Kind)
			assert.True(t, st.ModTime.Equal(t2), "mtime = %v, want %v", st.ModTime, t2)
		}
	}
	require.True(t, sawVirtualDir, "expected a/b/ to surface as a virtual directory")

	callsAfterIterdir := client.listCalls
	dirPath := backend.Path("bkt", "a/b/")
	st, err := dirPath.Stat(context.Background())
	require.NoError(t, err)
	assert.True(t, st.ModTime.Equal(t2))
	assert.Equal(t, callsAfterIterdir, client.listCalls, "stat on an already-listed subtree must not issue additional ListObjectsV2 calls")
}

// TestIterdirHintSatisfiesIsFileXorIsDir is spec.md I2: every Path yielded
// by iterdir answers is_file/is_dir from its hint alone.
func TestIterdirHintSatisfiesIsFileXorIsDir(t *testing.T) {
	client := newFakeClient()
	client.put("a/f.txt", "hi", time.Now())
	backend := newTestBackend(client)
	root := backend.Path("bkt", "a/")

	it, err := root.Iterdir(context.Background())
	require.NoError(t, err)
	callsBefore := client.listCalls + client.headCalls
	child, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	isFile, err := child.IsFile(context.Background())
	require.NoError(t, err)
	isDir, err := child.IsDir(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, isFile, isDir)
	assert.Equal(t, callsBefore, client.listCalls+client.headCalls, "hinted classification must not issue backend I/O")
}

// TestStatCachedListingIssuesNoNetworkCalls is spec.md I3.
func TestStatCachedListingIssuesNoNetworkCalls(t *testing.T) {
	client := newFakeClient()
	client.put("dir/child.txt", "x", time.Now())
	backend := newTestBackend(client)
	root := backend.Path("bkt", "")

	_, err := root.Iterdir(context.Background())
	require.NoError(t, err)
	dirPath := backend.Path("bkt", "dir/")
	_, err = dirPath.Iterdir(context.Background())
	require.NoError(t, err)

	callsBefore := client.listCalls + client.headCalls
	_, err = dirPath.Stat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, callsBefore, client.listCalls+client.headCalls)
}

func TestHeadObjectCachedUnderSameKeyAsListing(t *testing.T) {
	client := newFakeClient()
	now := time.Now()
	client.put("a/f.txt", "hello", now)
	backend := newTestBackend(client)
	root := backend.Path("bkt", "a/")

	_, err := root.Iterdir(context.Background())
	require.NoError(t, err)

	filePath := backend.Path("bkt", "a/f.txt")
	callsBefore := client.headCalls
	st, err := filePath.Stat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len("hello")), st.Size)
	assert.Equal(t, callsBefore, client.headCalls, "stat must reuse the head cached by the prior listing")
}

func TestExistsFalseForMissingKey(t *testing.T) {
	client := newFakeClient()
	backend := newTestBackend(client)
	p := backend.Path("bkt", "missing.txt")
	exists, err := p.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRmtreeDeletesEveryKeyUnderPrefix(t *testing.T) {
	client := newFakeClient()
	for i := 0; i < 5; i++ {
		client.put("big/"+string(rune('a'+i))+".txt", "x", time.Now())
	}
	backend := newTestBackend(client)
	root := backend.Path("bkt", "big/")
	require.NoError(t, root.Rmtree(context.Background()))
	assert.Empty(t, client.objects)
}

func TestCopySameSchemeRefusesOverwriteWithoutFlag(t *testing.T) {
	client := newFakeClient()
	client.put("src.txt", "body", time.Now())
	client.put("dst.txt", "existing", time.Now())
	backend := newTestBackend(client)
	src := backend.Path("bkt", "src.txt").Impl()
	dstImpl := backend.Path("bkt", "dst.txt").Impl()

	copier, ok := src.(interface {
		CopySameScheme(ctx context.Context, dst vpath.PathImpl, overwrite bool) error
	})
	require.True(t, ok)
	err := copier.CopySameScheme(context.Background(), dstImpl, false)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.AlreadyExists, e.Kind)
}
