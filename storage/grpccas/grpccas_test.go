package grpccas

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/localfs"
	"xdao.co/trailproof/storage/testkit"
)

func serve(t *testing.T, backend storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterCASServer(srv, &Server{CAS: backend})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	client := NewClient(cc)
	client.Timeout = 2 * time.Second
	return client
}

func TestSchemaRoundTripThroughLocalFS(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, cas)
	ctx := context.Background()

	schema := []byte(`{"type":"object","required":["lot"]}`)
	id, err := client.Put(ctx, schema)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, err := client.Has(ctx, id); !ok || err != nil {
		t.Fatalf("Has: got (%v, %v)", ok, err)
	}
	got, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(schema) {
		t.Fatalf("payload mismatch")
	}
}

func TestConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return serve(t, storage.NewMemory())
	})
}

// lyingCAS returns the same bytes for every CID.
type lyingCAS struct{ storage.CAS }

func (lyingCAS) Get(context.Context, cid.Cid) ([]byte, error) { return []byte("not the block"), nil }

func TestServerRejectsBlocksThatDoNotHash(t *testing.T) {
	client := serve(t, lyingCAS{storage.NewMemory()})
	id, err := cidutil.CIDv1RawSHA256CID([]byte("real block"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Get(context.Background(), id); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestStatusMappingRoundTrip(t *testing.T) {
	for _, want := range []error{storage.ErrNotFound, storage.ErrInvalidCID, storage.ErrCIDMismatch} {
		if got := fromStatus(toStatus(want)); !errors.Is(got, want) {
			t.Fatalf("%v: got %v", want, got)
		}
	}
	if got := fromStatus(toStatus(storage.ErrUnavailable)); !errors.Is(got, storage.ErrUnavailable) {
		t.Fatalf("unavailable: got %v", got)
	}
	if fromStatus(nil) != nil || toStatus(nil) != nil {
		t.Fatalf("nil must map to nil")
	}
}

func TestUnreachableDaemonIsUnavailable(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	_ = lis.Close()
	cc, err := grpc.NewClient("passthrough:///closed",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer cc.Close()
	client := NewClient(cc)
	client.Timeout = 200 * time.Millisecond

	if _, err := client.Put(context.Background(), []byte("x")); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
