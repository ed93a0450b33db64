// Package bundle packs a proof document and the content blocks it refers to
// (step schemas, sealed step payloads) into a deterministic TAR, so a proof can
// be verified on a machine without access to the original content storage.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

const (
	proofEntry = "proof.json"
	indexEntry = "index.json"
	blockDir   = "blocks/"
)

var epoch = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Proof is the proof document to carry alongside the blocks; optional.
	Proof []byte
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes a TAR containing opts.Proof and the blocks for ids.
//
// Entry order is lexicographic and TAR headers are normalized, so identical
// inputs produce identical bytes. Every exported block is checked against its CID.
func Export(ctx context.Context, w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	blocks := make([]indexBlock, 0, len(names))
	for _, s := range names {
		id := uniq[s]
		b, err := cas.Get(ctx, id)
		if err != nil {
			return fail(fmt.Errorf("bundle: block %s: %w", s, err))
		}
		got, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			return fail(err)
		}
		if got != id {
			return fail(storage.ErrCIDMismatch)
		}
		if err := writeFile(tw, blockDir+s, b); err != nil {
			return fail(err)
		}
		blocks = append(blocks, indexBlock{CID: s, Size: len(b)})
	}

	if opts.IncludeIndex {
		b, err := json.Marshal(indexJSON{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Blocks:    blocks,
			HasProof:  opts.Proof != nil,
		})
		if err != nil {
			return fail(err)
		}
		if err := writeFile(tw, indexEntry, append(b, '\n')); err != nil {
			return fail(err)
		}
	}
	if opts.Proof != nil {
		if !json.Valid(opts.Proof) {
			return fail(fmt.Errorf("bundle: proof is not valid JSON"))
		}
		if err := writeFile(tw, proofEntry, opts.Proof); err != nil {
			return fail(err)
		}
	}
	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Contents summarizes an imported bundle.
type Contents struct {
	Proof  []byte
	Blocks []cid.Cid
}

// Import reads a bundle from r, stores all blocks into cas and returns the
// carried proof. Each block must match both its entry name and its bytes.
func Import(ctx context.Context, r io.Reader, cas storage.CAS, opts ImportOptions) (*Contents, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	out := &Contents{}
	seen := map[cid.Cid]struct{}{}
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		switch {
		case name == indexEntry:
			_, _ = io.Copy(io.Discard, tr)
			continue
		case name == proofEntry:
			if out.Proof != nil {
				return nil, fmt.Errorf("bundle: duplicate proof entry")
			}
			if out.Proof, err = io.ReadAll(tr); err != nil {
				return nil, err
			}
			continue
		case !strings.HasPrefix(name, blockDir):
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, blockDir))
		if derr != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		got, err := cidutil.CIDv1RawSHA256CID(payload)
		if err != nil {
			return nil, err
		}
		if got != id {
			return nil, storage.ErrCIDMismatch
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("bundle: duplicate block entry: %s", id)
		}
		seen[id] = struct{}{}

		putID, err := cas.Put(ctx, payload)
		if err != nil {
			return nil, err
		}
		if putID != id {
			return nil, storage.ErrCIDMismatch
		}
		out.Blocks = append(out.Blocks, id)
	}
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	HasProof  bool         `json:"hasProof"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
