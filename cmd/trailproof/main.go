package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/compliance"
	"xdao.co/trailproof/config"
	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/model"
	"xdao.co/trailproof/proof"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/bundle"
	"xdao.co/trailproof/storage/casregistry"
	"xdao.co/trailproof/storagekey"
	"xdao.co/trailproof/verifier"
	"xdao.co/trailproof/workflow"

	_ "xdao.co/trailproof/storage/boltcas"
	_ "xdao.co/trailproof/storage/grpccas"
	_ "xdao.co/trailproof/storage/ipfs"
	_ "xdao.co/trailproof/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "workflow":
		return cmdWorkflow(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "storage-key":
		return cmdStorageKey(args[1:], out, errOut)
	case "decode-trail":
		return cmdDecodeTrail(args[1:], out, errOut)
	case "decode-record":
		return cmdDecodeRecord(args[1:], out, errOut)
	case "address":
		return cmdAddress(args[1:], out, errOut)
	case "cas":
		return cmdCAS(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "trailproof: workflow proof verifier")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  trailproof verify [--config <toml>] [--rpc <url>] [--mode permissive|strict] [--bundle <tar>] [--json] [<proof.json>|-]")
	fmt.Fprintln(w, "  trailproof workflow get <0xhash>")
	fmt.Fprintln(w, "  trailproof workflow list")
	fmt.Fprintln(w, "  trailproof workflow find --tag <t> [--tag ...]")
	fmt.Fprintln(w, "  trailproof bundle export --proof <proof.json> --out <tar> [--backend <name> ...]")
	fmt.Fprintln(w, "  trailproof bundle import --in <tar> [--backend <name> ...]")
	fmt.Fprintln(w, "  trailproof cid hex-to-string <0xhex>")
	fmt.Fprintln(w, "  trailproof cid string-to-hex <cid>")
	fmt.Fprintln(w, "  trailproof cid of <file>")
	fmt.Fprintln(w, "  trailproof storage-key --namespace <n> --map <m> [--hasher <h>] [--key <0xhex>]")
	fmt.Fprintln(w, "  trailproof decode-trail <0xhex>")
	fmt.Fprintln(w, "  trailproof decode-record <0xhex>")
	fmt.Fprintln(w, "  trailproof address <ss58|0xhex>")
	fmt.Fprintln(w, "  trailproof cas put|get --backend <name> [backend flags] <file|cid>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - ledger commands read rpc_url and [namespaces] from --config; --rpc overrides rpc_url")
	fmt.Fprintln(w, "  - verify exits 0 for a valid proof, 1 for an invalid one, 2 for malformed input")
	fmt.Fprintln(w, "  - --bundle supplies schemas offline and, without a proof argument, the proof itself")
}

// ledgerFlags are shared by commands that read the ledger.
type ledgerFlags struct {
	configPath string
	rpcURL     string
	verbose    bool
}

func (l *ledgerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&l.configPath, "config", "", "TOML config file")
	fs.StringVar(&l.rpcURL, "rpc", "", "Ledger JSON-RPC URL (overrides config)")
	fs.BoolVar(&l.verbose, "v", false, "Log verification progress to stderr")
}

func (l *ledgerFlags) load() (config.Config, error) {
	cfg := config.Default()
	if l.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(l.configPath); err != nil {
			return cfg, err
		}
	}
	if l.rpcURL != "" {
		cfg.RPCURL = l.rpcURL
	}
	if l.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func (l *ledgerFlags) logger(cfg config.Config, errOut io.Writer) *slog.Logger {
	if !l.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return cfg.Logger(errOut)
}

// contentFlags select a content store from the command line, else from config.
type contentFlags struct {
	backend string
	flags   casregistry.Flags
}

func (c *contentFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "", "CAS backend name (default: [cas] from config)")
	c.flags = casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *contentFlags) open(cfg config.Config, logger *slog.Logger) (storage.CAS, func() error, error) {
	if c.backend == "" {
		return cfg.Content(casregistry.UsageCLI, logger)
	}
	cas, closeFn, err := casregistry.Open(c.backend, casregistry.UsageCLI, c.flags)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return cas, closeFn, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		lf         ledgerFlags
		cf         contentFlags
		mode       string
		bundlePath string
		asJSON     bool
	)
	lf.register(fs)
	cf.register(fs)
	fs.StringVar(&mode, "mode", "", "Compliance mode: permissive|strict (default: config)")
	fs.StringVar(&bundlePath, "bundle", "", "Proof bundle (TAR) providing schemas and optionally the proof")
	fs.BoolVar(&asJSON, "json", false, "Print the verification result as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 || (fs.NArg() == 0 && bundlePath == "") {
		fmt.Fprintln(errOut, "usage: trailproof verify [flags] <proof.json>|-")
		return 2
	}

	cfg, err := lf.load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	if mode != "" {
		if cfg.Compliance, err = compliance.Parse(mode); err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	}
	logger := lf.logger(cfg, errOut)
	ctx := context.Background()

	var raw []byte
	var content storage.CAS
	if bundlePath != "" {
		mem := storage.NewMemory()
		f, err := os.Open(bundlePath)
		if err != nil {
			fmt.Fprintf(errOut, "read --bundle: %v\n", err)
			return 1
		}
		contents, err := bundle.Import(ctx, f, mem, bundle.ImportOptions{})
		_ = f.Close()
		if err != nil {
			fmt.Fprintf(errOut, "invalid bundle: %v\n", err)
			return 2
		}
		raw, content = contents.Proof, mem
	} else {
		cas, closeFn, err := cf.open(cfg, logger)
		if err != nil {
			fmt.Fprintf(errOut, "open cas: %v\n", err)
			return 2
		}
		defer closeFn()
		content = cas
	}
	if fs.NArg() == 1 {
		if raw, err = readInput(fs.Arg(0), os.Stdin); err != nil {
			fmt.Fprintf(errOut, "read proof: %v\n", err)
			return 1
		}
	}
	if raw == nil {
		fmt.Fprintln(errOut, "bundle carries no proof; pass one explicitly")
		return 2
	}

	v := verifier.New(cfg.Index(), content, logger)
	v.ProbeTimeout = cfg.ProbeTimeout
	res, err := v.Verify(ctx, raw, verifier.Options{Mode: cfg.Compliance})
	if res == nil {
		fmt.Fprintf(errOut, "invalid proof: %v\n", err)
		return 2
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(model.FromResult(res))
	} else {
		printResult(out, res)
	}
	if err != nil {
		fmt.Fprintf(errOut, "verification incomplete: %v\n", err)
		return 1
	}
	if !res.IsValid {
		return 1
	}
	return 0
}

func printResult(w io.Writer, r *verifier.Result) {
	fmt.Fprintf(w, "content hash    %s\n", r.ContentHash)
	fmt.Fprintf(w, "anchored        %t\n", r.Found)
	if r.Found {
		fmt.Fprintf(w, "creator         %s\n", r.Creator)
		fmt.Fprintf(w, "block           %d\n", r.Block)
		sig := "invalid"
		if r.SignatureValid {
			sig = "valid (" + string(r.Scheme) + ")"
		}
		fmt.Fprintf(w, "signature       %s\n", sig)
	}
	if r.Reconstructed() {
		fmt.Fprintf(w, "workflow        %s step %d\n", r.RagHash, r.CurrentIndex)
		fmt.Fprintf(w, "chain of trust  %s\n", r.ChainOfTrust)
		fmt.Fprintf(w, "chronology      %s\n", r.Chronology)
		for _, s := range r.History {
			if !s.Found {
				fmt.Fprintf(w, "  [%d] %-16s not anchored\n", s.Index, s.StepKey)
				continue
			}
			fmt.Fprintf(w, "  [%d] %-16s block %-8d %s  trust=%s schema=%s\n",
				s.Index, s.StepKey, s.Block, s.Timestamp.UTC().Format(time.RFC3339), s.ChainOfTrust, s.SchemaValid)
		}
	}
	verdict := "INVALID"
	if r.IsValid {
		verdict = "VALID"
	}
	fmt.Fprintf(w, "verdict         %s\n", verdict)
	for _, e := range r.Reasons {
		if id := errdefs.RuleID(e); id != "" {
			fmt.Fprintf(w, "  - %s %s: %v\n", id, errdefs.KindOf(e), e)
			continue
		}
		fmt.Fprintf(w, "  - %v\n", e)
	}
}

func cmdWorkflow(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: trailproof workflow <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: get, list, find")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("workflow "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var lf ledgerFlags
	var tags multiFlag
	lf.register(fs)
	if sub == "find" {
		fs.Var(&tags, "tag", "Tag (repeatable, all must match)")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	cfg, err := lf.load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	idx := cfg.Index()
	ctx := context.Background()

	var listings []workflow.Listing
	switch sub {
	case "get":
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: trailproof workflow get <0xhash>")
			return 2
		}
		h, err := record.ParseHash(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid hash: %v\n", err)
			return 2
		}
		rec, err := idx.Get(ctx, h)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		listings = []workflow.Listing{{Hash: h, Record: rec}}
	case "list":
		if listings, err = idx.List(ctx); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	case "find":
		listings, err = idx.FindByTags(ctx, tags)
		if errdefs.IsKind(err, errdefs.KindValidation) {
			fmt.Fprintln(errOut, err)
			return 2
		}
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	default:
		fmt.Fprintf(errOut, "unknown workflow subcommand: %s\n", sub)
		return 2
	}
	outs := make([]model.Workflow, 0, len(listings))
	for _, l := range listings {
		outs = append(outs, model.FromRecord(l.Hash, l.Record))
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if sub == "get" {
		_ = enc.Encode(outs[0])
	} else {
		_ = enc.Encode(outs)
	}
	return 0
}

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: trailproof bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export, import")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("bundle "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		lf        ledgerFlags
		cf        contentFlags
		proofPath string
		outPath   string
		inPath    string
		extra     multiFlag
	)
	lf.register(fs)
	cf.register(fs)
	switch sub {
	case "export":
		fs.StringVar(&proofPath, "proof", "", "Proof document")
		fs.StringVar(&outPath, "out", "", "Output TAR")
		fs.Var(&extra, "cid", "Additional block CID to include (repeatable)")
	case "import":
		fs.StringVar(&inPath, "in", "", "Input TAR")
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", sub)
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	cfg, err := lf.load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	logger := lf.logger(cfg, errOut)
	cas, closeFn, err := cf.open(cfg, logger)
	if err != nil {
		fmt.Fprintf(errOut, "open cas: %v\n", err)
		return 2
	}
	defer closeFn()
	if cas == nil {
		fmt.Fprintln(errOut, "no content store: pass --backend or configure [cas]")
		return 2
	}
	ctx := context.Background()

	if sub == "import" {
		if inPath == "" {
			fmt.Fprintln(errOut, "usage: trailproof bundle import --in <tar>")
			return 2
		}
		f, err := os.Open(inPath)
		if err != nil {
			fmt.Fprintf(errOut, "read --in: %v\n", err)
			return 1
		}
		defer f.Close()
		contents, err := bundle.Import(ctx, f, cas, bundle.ImportOptions{})
		if err != nil {
			fmt.Fprintf(errOut, "import: %v\n", err)
			return 1
		}
		for _, id := range contents.Blocks {
			fmt.Fprintln(out, id)
		}
		return 0
	}

	if proofPath == "" || outPath == "" {
		fmt.Fprintln(errOut, "usage: trailproof bundle export --proof <proof.json> --out <tar>")
		return 2
	}
	raw, err := readInput(proofPath, os.Stdin)
	if err != nil {
		fmt.Fprintf(errOut, "read --proof: %v\n", err)
		return 1
	}
	ids, err := schemaCIDs(ctx, cfg.Index(), raw)
	if err != nil {
		fmt.Fprintf(errOut, "collect schemas: %v\n", err)
		return 1
	}
	for _, s := range extra {
		id, err := cidutil.Parse(s)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --cid %q: %v\n", s, err)
			return 2
		}
		ids = append(ids, id)
	}
	var buf bytes.Buffer
	if err := bundle.Export(ctx, &buf, cas, ids, bundle.ExportOptions{Proof: raw, IncludeIndex: true}); err != nil {
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(errOut, "write --out: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%s (%d blocks)\n", outPath, len(ids))
	return 0
}

// schemaCIDs lists the schema CIDs of the steps a workflow proof reaches.
func schemaCIDs(ctx context.Context, idx *workflow.Index, raw []byte) ([]cid.Cid, error) {
	doc, err := proof.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !doc.IsWorkflow() {
		return nil, nil
	}
	resolved, err := idx.Master(ctx, doc.RagData.RagHash, doc.RagData.StepHash)
	if errdefs.IsKind(err, errdefs.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []cid.Cid
	for i := 0; i <= resolved.CurrentIndex; i++ {
		if rec := resolved.Step(i); rec != nil && rec.SchemaCID.Defined() {
			ids = append(ids, rec.SchemaCID)
		}
	}
	return ids, nil
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(errOut, "usage: trailproof cid hex-to-string|string-to-hex|of <arg>")
		return 2
	}
	switch args[0] {
	case "hex-to-string":
		s, err := cidutil.HexToString(args[1])
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, s)
	case "string-to-hex":
		h, err := cidutil.StringToHex(args[1])
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, h)
	case "of":
		b, err := os.ReadFile(args[1])
		if err != nil {
			fmt.Fprintf(errOut, "read: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, cidutil.CIDv1RawSHA256(b))
	default:
		fmt.Fprintf(errOut, "unknown cid subcommand: %s\n", args[0])
		return 2
	}
	return 0
}

func cmdStorageKey(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("storage-key", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var namespace, mapName, hasherName, keyHex string
	fs.StringVar(&namespace, "namespace", "", "Storage namespace (pallet)")
	fs.StringVar(&mapName, "map", "", "Storage map name")
	fs.StringVar(&hasherName, "hasher", storagekey.Blake2_128Concat.String(), "Key hasher")
	fs.StringVar(&keyHex, "key", "", "Map key as 0x-hex; omit for the map prefix")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if namespace == "" || mapName == "" {
		fmt.Fprintln(errOut, "usage: trailproof storage-key --namespace <n> --map <m> [--hasher <h>] [--key <0xhex>]")
		return 2
	}
	if keyHex == "" {
		fmt.Fprintln(out, storagekey.Hex(storagekey.Prefix(namespace, mapName)))
		return 0
	}
	hasher, err := storagekey.ParseHasher(hasherName)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	key, err := cidutil.DecodeHex(keyHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --key: %v\n", err)
		return 2
	}
	fmt.Fprintln(out, storagekey.Hex(storagekey.MapKey(namespace, mapName, hasher, key)))
	return 0
}

type trailView struct {
	Creator         string `json:"creator"`
	Encrypted       bool   `json:"encrypted"`
	EncryptedCID    string `json:"encryptedCid"`
	EphemeralPubKey string `json:"ephemeralPubKey"`
	CIDNonce        string `json:"cidNonce"`
	ContentNonce    string `json:"contentNonce"`
	ContentHash     string `json:"contentHash"`
	Signature       string `json:"signature"`
	SignatureValid  bool   `json:"signatureValid"`
	CreatedAt       uint32 `json:"createdAt"`
	ExpiresAt       uint32 `json:"expiresAt"`
}

func cmdDecodeTrail(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: trailproof decode-trail <0xhex>")
		return 2
	}
	b, err := cidutil.DecodeHex(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "invalid hex: %v\n", err)
		return 2
	}
	t, err := record.DecodeCryptoTrail(b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	hx := func(b []byte) string { return "0x" + hex.EncodeToString(b) }
	view := trailView{
		Creator:         t.Creator.Address(),
		Encrypted:       t.Encrypted(),
		EncryptedCID:    hx(t.EncryptedCID[:]),
		EphemeralPubKey: hx(t.EphemeralPubKey[:]),
		CIDNonce:        hx(t.CIDNonce[:]),
		ContentNonce:    hx(t.ContentNonce[:]),
		ContentHash:     t.ContentHash.Hex(),
		Signature:       hx(t.Signature[:]),
		SignatureValid:  keys.VerifyWrapped(t.Creator, t.ContentHash[:], t.Signature) != keys.SchemeNone,
		CreatedAt:       t.CreatedAt,
		ExpiresAt:       t.ExpiresAt,
	}
	return printJSON(out, errOut, view)
}

func cmdDecodeRecord(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: trailproof decode-record <0xhex>")
		return 2
	}
	b, err := cidutil.DecodeHex(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "invalid hex: %v\n", err)
		return 2
	}
	r, err := record.DecodeRagRecord(b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return printJSON(out, errOut, model.FromRecord(record.Hash{}, r))
}

func cmdAddress(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: trailproof address <ss58|0xhex>")
		return 2
	}
	id, err := keys.ParseAccount(args[0])
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintln(out, id.Address())
	fmt.Fprintln(out, id.Hex())
	return 0
}

func printJSON(out, errOut io.Writer, v any) int {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		if !errors.Is(err, io.ErrClosedPipe) {
			fmt.Fprintln(errOut, err)
		}
		return 1
	}
	return 0
}

func cmdCAS(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: trailproof cas <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get")
		fmt.Fprintf(errOut, "backends: %s\n", strings.Join(casregistry.Names(casregistry.UsageCLI), ", "))
		return 2
	}
	sub := args[0]
	if sub != "put" && sub != "get" {
		fmt.Fprintf(errOut, "unknown cas subcommand: %s\n", sub)
		return 2
	}
	fs := flag.NewFlagSet("cas "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf contentFlags
	cf.register(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if cf.backend == "" || fs.NArg() != 1 {
		fmt.Fprintf(errOut, "usage: trailproof cas %s --backend <name> <arg>\n", sub)
		return 2
	}
	cas, closeFn, err := cf.open(config.Default(), nil)
	if err != nil {
		fmt.Fprintf(errOut, "open cas: %v\n", err)
		return 2
	}
	defer closeFn()
	ctx := context.Background()

	if sub == "get" {
		id, err := cidutil.Parse(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 2
		}
		b, err := cas.Get(ctx, id)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = out.Write(b)
		return 0
	}

	b, err := readInput(fs.Arg(0), os.Stdin)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	id, err := cas.Put(ctx, b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if want := cidutil.CIDv1RawSHA256(b); id.String() != want {
		fmt.Fprintf(errOut, "backend returned %s, expected %s\n", id, want)
		return 1
	}
	fmt.Fprintln(out, id)
	return 0
}
