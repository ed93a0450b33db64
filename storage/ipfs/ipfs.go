// Package ipfs is a storage.CAS backed by the local Kubo "ipfs" CLI.
//
// It works against the local repository and needs no running daemon. Blocks
// are put with explicit raw/sha2-256/CIDv1 parameters so the returned CID is
// the one cidutil computes, and every block read back is re-hashed.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/storage"
)

type CAS struct {
	bin string
	env []string
}

type Options struct {
	// Bin is the ipfs binary; empty means "ipfs" on PATH.
	Bin string
	// Env replaces the command environment when non-nil (e.g. to set IPFS_PATH).
	Env []string
}

func New(opts Options) *CAS {
	if opts.Bin == "" {
		opts.Bin = "ipfs"
	}
	return &CAS{bin: opts.Bin, env: opts.Env}
}

var _ storage.CAS = (*CAS)(nil)

var putArgs = []string{
	"block", "put", "--quiet",
	"--format=raw", "--mhtype=sha2-256", "--mhlen=32", "--cid-version=1",
	"/dev/stdin",
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	out, err := c.run(ctx, data, putArgs...)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return want, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(ctx, nil, "block", "get", id.String())
	if err != nil {
		return nil, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(out)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	_, err := c.run(ctx, nil, "block", "stat", "--offline", id.String())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// run executes the ipfs binary and classifies failures: a missing binary or
// an expired context is ErrUnavailable, a "not found" report is ErrNotFound.
func (c *CAS) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: ipfs %s: %v", storage.ErrUnavailable, args[1], ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", storage.ErrUnavailable, c.bin)
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return nil, fmt.Errorf("ipfs %s: %w", args[1], err)
	}
	msg := strings.TrimSpace(string(ee.Stderr))
	if strings.Contains(strings.ToLower(msg), "not found") {
		return nil, storage.ErrNotFound
	}
	if msg == "" {
		msg = err.Error()
	}
	return nil, fmt.Errorf("ipfs %s: %s", args[1], msg)
}
