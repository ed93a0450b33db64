package proof

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/record"
)

const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func TestDeliverableMergeOverwritesInPlace(t *testing.T) {
	var d Deliverable
	require.NoError(t, d.Merge("harvest", json.RawMessage(`{"kg": 10}`)))
	require.NoError(t, d.Merge("ship", json.RawMessage(`{"truck":"A"}`)))
	require.NoError(t, d.Merge("harvest", json.RawMessage(`{"kg":12}`)))

	require.Equal(t, []string{"harvest", "ship"}, d.Keys())
	p, ok := d.Get("harvest")
	require.True(t, ok)
	require.JSONEq(t, `{"kg":12}`, string(p))

	require.Error(t, d.Merge("", json.RawMessage(`{}`)))
	require.True(t, errdefs.IsKind(d.Merge("x", json.RawMessage(`{`)), errdefs.KindDecode))
}

func TestPrefixIsACopy(t *testing.T) {
	var d Deliverable
	require.NoError(t, d.Merge("a", json.RawMessage(`1`)))
	require.NoError(t, d.Merge("b", json.RawMessage(`2`)))
	p := d.Prefix(1)
	require.Equal(t, []string{"a"}, p.Keys())
	require.NoError(t, p.Merge("c", json.RawMessage(`3`)))
	require.Equal(t, []string{"a", "b"}, d.Keys())
	require.Len(t, d.Prefix(9), 2)
	require.Len(t, d.Prefix(-1), 0)
}

func TestCanonicalPreservesOrderAndSkipsHTMLEscaping(t *testing.T) {
	raw := []byte(`{"ragData":{"ragHash":"0x` + hex32("11") + `","stepHash":"0x` + hex32("22") + `",
		"deliverable":{"zeta":{"note":"a<b>&c"},"alpha":{ "n" : 1 }}}}`)
	doc, err := Parse(raw)
	require.NoError(t, err)
	require.True(t, doc.IsWorkflow())

	b, err := Canonical(doc.RagData.Deliverable)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":{"note":"a<b>&c"},"alpha":{"n":1}}`, string(b))

	h, err := doc.ContentHash()
	require.NoError(t, err)
	require.Equal(t, record.Hash(blake2b.Sum256(b)), h)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		`{`,
		`[]`,
		`{"ragData":{"ragHash":"0x12","stepHash":"0x` + hex32("22") + `","deliverable":{}}}`,
		`{"ragData":{"ragHash":"0x` + hex32("11") + `","stepHash":"0x` + hex32("22") + `","deliverable":[]}}`,
		`{"ragData":{"ragHash":"0x` + hex32("11") + `","stepHash":"0x` + hex32("22") + `","deliverable":{"a":1,"a":2}}}`,
	} {
		_, err := Parse([]byte(in))
		require.True(t, errdefs.IsKind(err, errdefs.KindDecode), "input %s: %v", in, err)
	}
}

func TestNonWorkflowDocumentHashesCompactedWhole(t *testing.T) {
	doc, err := Parse([]byte(`{ "hello" : "world" }`))
	require.NoError(t, err)
	require.False(t, doc.IsWorkflow())
	h, err := doc.ContentHash()
	require.NoError(t, err)
	require.Equal(t, record.Hash(blake2b.Sum256([]byte(`{"hello":"world"}`))), h)
}

func TestMarshalRoundTrip(t *testing.T) {
	var d Deliverable
	require.NoError(t, d.Merge("s1", json.RawMessage(`{"_targetAddress":"`+alice+`"}`)))
	require.NoError(t, d.Merge("s2", json.RawMessage(`{"ok":true}`)))
	var rag, step record.Hash
	rag[0], step[0] = 1, 2
	doc := New(rag, step, d)

	b, err := doc.Marshal()
	require.NoError(t, err)
	back, err := Parse(b)
	require.NoError(t, err)
	require.Equal(t, doc.RagData, back.RagData)

	h1, err := doc.ContentHash()
	require.NoError(t, err)
	h2, err := back.ContentHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	p1, err := PrefixHash(d, 1)
	require.NoError(t, err)
	require.NotEqual(t, h1, p1)
}

func TestEntryTarget(t *testing.T) {
	id, ok, err := Entry{Key: "s", Payload: json.RawMessage(`{"_targetAddress":"` + alice + `"}`)}.Target()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, alice, id.Address())

	_, ok, err = Entry{Key: "s", Payload: json.RawMessage(`{"x":1}`)}.Target()
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = Entry{Key: "s", Payload: json.RawMessage(`{"_targetAddress":"nope"}`)}.Target()
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode))
}

func hex32(b string) string {
	out := ""
	for i := 0; i < 32; i++ {
		out += b
	}
	return out
}
