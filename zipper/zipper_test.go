package zipper

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	blobmemory "github.com/workfleet/fulfill/blob/memory"
)

// compressiblePayload builds n bytes of repetitive JSON-ish text.
func compressiblePayload(n int) string {
	var b strings.Builder
	b.Grow(n)
	for b.Len() < n {
		b.WriteString(`{"order": "widgets", "quantity": 12, "note": "ship promptly"},`)
	}
	return b.String()[:n]
}

// incompressiblePayload builds n bytes of seeded pseudo-random printable
// characters that zlib cannot squeeze under the limit.
func incompressiblePayload(n int) string {
	rng := rand.New(rand.NewSource(42))
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(33 + rng.Intn(94))
	}
	return string(out)
}

func newTestZipper() (*Zipper, *blobmemory.Store) {
	store := blobmemory.New()
	z := New(Options{
		Store:  store,
		Bucket: "dev.payloads",
		Prefix: "retain_30_180/zipped-ff",
	})
	return z, store
}

func TestDeliverSmallPassthrough(t *testing.T) {
	z, _ := newTestZipper()
	out, err := z.Deliver(context.Background(), "Hello", 5000)
	require.NoError(t, err)
	require.Equal(t, "Hello", out)
}

func TestDeliverZipsLargePayload(t *testing.T) {
	ctx := context.Background()
	z, store := newTestZipper()
	payload := compressiblePayload(72686)

	delivered, err := z.Deliver(ctx, payload, 30000)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(delivered, "FF-ZIP:72686:"))
	require.Less(t, len(delivered), 30000)
	require.Equal(t, 0, store.Len())

	received, err := z.Receive(ctx, delivered)
	require.NoError(t, err)
	require.Len(t, received, 72686)
	require.Equal(t, payload, received)
}

func TestDeliverOffloadsOversizedPayload(t *testing.T) {
	ctx := context.Background()
	z, store := newTestZipper()
	payload := incompressiblePayload(394710)

	delivered, err := z.Deliver(ctx, payload, 30000)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^FF-URL:[0-9a-f]{32}:s3://dev\.payloads/retain_30_180/zipped-ff/[0-9a-f]{32}\.ff$`), delivered)
	require.Equal(t, 1, store.Len())

	received, err := z.Receive(ctx, delivered)
	require.NoError(t, err)
	require.Len(t, received, 394710)
	require.Equal(t, payload, received)
}

func TestReceivePassthrough(t *testing.T) {
	z, _ := newTestZipper()
	out, err := z.Receive(context.Background(), `{"plain": "payload"}`)
	require.NoError(t, err)
	require.Equal(t, `{"plain": "payload"}`, out)
}

func TestReceiveToleratesNewlinesInBase64(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestZipper()
	payload := compressiblePayload(60000)

	delivered, err := z.Deliver(ctx, payload, 30000)
	require.NoError(t, err)

	// the streaming encoder historically wrapped base64 at 76 columns
	header := delivered[:strings.LastIndex(delivered[:zipHeadMax], ":")+1]
	body := delivered[len(header):]
	var wrapped strings.Builder
	wrapped.WriteString(header)
	for i := 0; i < len(body); i += 76 {
		end := min(i+76, len(body))
		wrapped.WriteString(body[i:end])
		wrapped.WriteString("\n")
	}

	received, err := z.Receive(ctx, wrapped.String())
	require.NoError(t, err)
	require.Equal(t, payload, received)
}

func TestReceiveRejectsForeignScheme(t *testing.T) {
	z, _ := newTestZipper()
	_, err := z.Receive(context.Background(), "FF-URL:d41d8cd98f00b204e9800998ecf8427e:gs://bucket/key")
	require.ErrorContains(t, err, `unsupported blob scheme "gs"`)
}

func TestDeliverWithoutStoreFailsOnOversize(t *testing.T) {
	z := New(Options{})
	_, err := z.Deliver(context.Background(), incompressiblePayload(100000), 1000)
	require.ErrorContains(t, err, "no blob store")
}

func TestRoundTripProperty(t *testing.T) {
	ctx := context.Background()
	z, _ := newTestZipper()

	properties := gopter.NewProperties(nil)
	properties.Property("receive inverts deliver", prop.ForAll(
		func(payload string, limit int) bool {
			delivered, err := z.Deliver(ctx, payload, limit)
			if err != nil {
				return false
			}
			received, err := z.Receive(ctx, delivered)
			return err == nil && received == payload
		},
		gen.AnyString(),
		gen.IntRange(1, 512),
	))
	properties.TestingRun(t)
}
