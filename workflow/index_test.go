package workflow_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/workflow"
	"xdao.co/trailproof/workflow/workflowtest"
)

func TestMasterLocatesStep(t *testing.T) {
	chain := workflowtest.New()
	w := chain.PublishWorkflow(t, "cold chain", workflowtest.Step{Name: "harvest"}, workflowtest.Step{Name: "ship"}, workflowtest.Step{Name: "receive"})

	res, err := chain.Index.Master(context.Background(), w.RagHash, w.Steps[1])
	require.NoError(t, err)
	require.Equal(t, 1, res.CurrentIndex)
	require.Len(t, res.Steps, 3)
	require.Equal(t, "ship", res.Step(1).Name)
	require.Nil(t, res.Step(7))
	require.True(t, res.Master.IsMaster())
}

func TestMasterNotFoundCases(t *testing.T) {
	chain := workflowtest.New()
	w := chain.PublishWorkflow(t, "flow", workflowtest.Step{Name: "a"}, workflowtest.Step{Name: "b"})
	ctx := context.Background()

	_, err := chain.Index.Master(ctx, record.Hash{0xee}, w.Steps[0])
	require.True(t, errdefs.IsKind(err, errdefs.KindNotFound))

	_, err = chain.Index.Master(ctx, w.Steps[0], w.Steps[0])
	require.Equal(t, "TP-WF-003", errdefs.RuleID(err))

	_, err = chain.Index.Master(ctx, w.RagHash, record.Hash{0x01})
	require.Equal(t, "TP-WF-004", errdefs.RuleID(err))
}

func TestListEnumeratesAllRecords(t *testing.T) {
	chain := workflowtest.New()
	w := chain.PublishWorkflow(t, "flow", workflowtest.Step{Name: "a"}, workflowtest.Step{Name: "b"})

	all, err := chain.Index.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	got := map[record.Hash]string{}
	for _, l := range all {
		got[l.Hash] = l.Record.Name
	}
	require.Equal(t, "flow", got[w.RagHash])
	require.Equal(t, "a", got[w.Steps[0]])
	require.Equal(t, "b", got[w.Steps[1]])
}

func TestTrailAndExchangeKey(t *testing.T) {
	chain := workflowtest.New()
	ctx := context.Background()

	tr := &record.CryptoTrail{ContentHash: record.Hash{9}, CreatedAt: 50}
	tr.Creator[0] = 3
	chain.Anchor(tr)
	got, ok, err := chain.Index.Trail(ctx, record.Hash{9})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tr, got)

	_, ok, err = chain.Index.Trail(ctx, record.Hash{8})
	require.NoError(t, err)
	require.False(t, ok)

	var who keys.AccountID
	who[0] = 7
	_, err = chain.Index.ExchangeKey(ctx, who)
	require.True(t, errdefs.IsKind(err, errdefs.KindNotFound))
	chain.SetExchangeKey(who, [32]byte{1, 2, 3})
	k, err := chain.Index.ExchangeKey(ctx, who)
	require.NoError(t, err)
	require.Equal(t, byte(3), k[2])
}

func TestFindByTagsMatchesAllTags(t *testing.T) {
	chain := workflowtest.New()
	a := chain.PublishWorkflow(t, "dairy", workflowtest.Step{Name: "milk"})
	b := chain.PublishWorkflow(t, "meat", workflowtest.Step{Name: "cut"})
	chain.Tag(a.RagHash, "food", "cold")
	chain.Tag(b.RagHash, "food")

	got, err := chain.Index.FindByTags(context.Background(), []string{"food", "cold"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, a.RagHash, got[0].Hash)

	got, err = chain.Index.FindByTags(context.Background(), []string{"food"})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFindByTagsRejectsBeforeQuery(t *testing.T) {
	chain := workflowtest.New()
	cases := [][]string{
		nil,
		strings.Split("a,b,c,d,e,f,g,h,i,j,k", ","),
		{"ok", ""},
		{strings.Repeat("x", 16)},
	}
	for _, tags := range cases {
		_, err := chain.Index.FindByTags(context.Background(), tags)
		require.True(t, errdefs.IsKind(err, errdefs.KindValidation), "tags %q: %v", tags, err)
	}
	require.Equal(t, 0, chain.Calls())

	require.NoError(t, workflow.ValidateTags([]string{strings.Repeat("é", 15)}))
}

func TestEncodeTags(t *testing.T) {
	b, err := workflow.EncodeTags([]string{"ab", "c"})
	require.NoError(t, err)
	require.Equal(t, []byte{2 << 2, 2 << 2, 'a', 'b', 1 << 2, 'c'}, b)
}
