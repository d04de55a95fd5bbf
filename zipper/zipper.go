// Package zipper implements the size-limit codec for orchestrator payloads.
// Payloads at or over the per-payload ceiling are deflate-compressed and
// base64-encoded behind the FF-ZIP magick prefix; when even the zipped form
// is too large it is written to the blob store and replaced by an FF-URL
// reference. Receive inverts both forms, so receive(deliver(x)) == x for
// every payload.
package zipper

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/workfleet/fulfill/blob"
)

// Limit is the orchestrator's per-payload ceiling in bytes. The historical
// SWF value oscillated between 32000 and 32768; 32000 is the one both
// original workers shipped with and is fixed here.
const Limit = 32000

const (
	magickZip = "FF-ZIP"
	magickURL = "FF-URL"
	separator = ":"

	// zipHeadMax bounds the FF-ZIP header scan: magick, separator and up to
	// a 10 digit length.
	zipHeadMax = 17
)

type (
	// Options configures a Zipper.
	Options struct {
		// Store receives payloads too large even when zipped. Optional;
		// without it oversized payloads fail to encode.
		Store blob.Store
		// Bucket is the blob store bucket for offloaded payloads.
		Bucket string
		// Prefix is the retention prefix offloaded keys live under, for
		// example "retain_30_180/zipped-ff".
		Prefix string
		// Scheme names the blob protocol in FF-URL references. Defaults to
		// "s3".
		Scheme string
	}

	// Zipper encodes and decodes size-limited payloads.
	Zipper struct {
		store  blob.Store
		bucket string
		prefix string
		scheme string
	}
)

// New builds a Zipper. A zero Options value yields a codec that zips but
// cannot offload.
func New(opts Options) *Zipper {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "s3"
	}
	return &Zipper{
		store:  opts.Store,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		scheme: scheme,
	}
}

// Deliver returns data untouched when it fits under limit, its zipped form
// when that fits, and a blob-store reference otherwise.
func (z *Zipper) Deliver(ctx context.Context, data string, limit int) (string, error) {
	if len(data) < limit {
		return data, nil
	}
	zipped, err := zipData(data)
	if err != nil {
		return "", err
	}
	if len(zipped) > limit {
		return z.offload(ctx, zipped)
	}
	return zipped, nil
}

func zipData(data string) (string, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return magickZip + separator + strconv.Itoa(len(data)) + separator + encoded, nil
}

func (z *Zipper) offload(ctx context.Context, zipped string) (string, error) {
	if z.store == nil {
		return "", errors.New("payload exceeds limit and no blob store is configured")
	}
	sum := md5.Sum([]byte(zipped))
	hash := hex.EncodeToString(sum[:])
	key := z.prefix + "/" + hash + ".ff"
	if err := z.store.Put(ctx, z.bucket, key, []byte(zipped)); err != nil {
		return "", fmt.Errorf("offload payload: %w", err)
	}
	return fmt.Sprintf("%s%s%s%s%s://%s/%s", magickURL, separator, hash, separator, z.scheme, z.bucket, key), nil
}

// Receive inverts Deliver: FF-URL references are fetched and decoded
// recursively, FF-ZIP forms are decompressed, anything else passes through.
func (z *Zipper) Receive(ctx context.Context, data string) (string, error) {
	switch {
	case strings.HasPrefix(data, magickZip):
		return unzipData(data)
	case strings.HasPrefix(data, magickURL):
		return z.fetch(ctx, data)
	default:
		return data, nil
	}
}

func unzipData(data string) (string, error) {
	head := data
	if len(head) > zipHeadMax {
		head = head[:zipHeadMax]
	}
	parts := strings.SplitN(head, separator, 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("malformed %s header: %q", magickZip, head)
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return "", fmt.Errorf("malformed %s length %q: %w", magickZip, parts[1], err)
	}
	headerLen := len(magickZip) + len(parts[1]) + 2*len(separator)

	// Tolerate both base64 flavors: the streaming encoder historically
	// embedded newlines, the in-memory one does not.
	body := strings.NewReplacer("\n", "", "\r", "").Replace(data[headerLen:])
	compressed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", magickZip, err)
	}
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("decompress payload: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decompress payload: %w", err)
	}
	return string(out), nil
}

func (z *Zipper) fetch(ctx context.Context, ffURL string) (string, error) {
	// FF-URL:{md5}:{scheme}://{bucket}/{key}
	parts := strings.SplitN(ffURL, separator, 4)
	if len(parts) != 4 {
		return "", fmt.Errorf("malformed %s reference: %q", magickURL, ffURL)
	}
	scheme, path := parts[2], parts[3]
	if scheme != z.scheme {
		return "", fmt.Errorf("unsupported blob scheme %q (want %q)", scheme, z.scheme)
	}
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return "", fmt.Errorf("malformed %s path: %q", magickURL, path)
	}
	bucket := segments[0]
	key := strings.Join(segments[1:], "/")
	if z.store == nil {
		return "", errors.New("payload reference requires a blob store")
	}
	data, err := z.store.Get(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("fetch payload: %w", err)
	}
	return z.Receive(ctx, string(data))
}
