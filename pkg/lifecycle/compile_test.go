package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
states:
  Started: inProgress
  WORKING: inProgress
  DONE: done
  Failed: blocked

Build:
  executor: null
  results:
    created:
      outcome: WORKING
      on: Build

work:
  executor: work
  parent: Build
  results:
    success:
      - outcome: WORKING
        on: Build
      - outcome: DONE
    error:
      outcome: Failed
`

func TestCompileValidDocument(t *testing.T) {
	graph, err := Compile([]byte(validDoc), "work")
	require.NoError(t, err)

	work := graph.Node("work")
	require.NotNil(t, work)
	assert.False(t, work.IsPhaseGroup())
	assert.Equal(t, "Build", work.Group)

	edges := work.Results["success"]
	require.Len(t, edges, 2)
	assert.Equal(t, OutcomeEdge{Name: "WORKING", In: "Build"}, edges[0])
	assert.Equal(t, OutcomeEdge{Name: "DONE"}, edges[1])

	build := graph.Node("Build")
	require.NotNil(t, build)
	assert.True(t, build.IsPhaseGroup())

	col, ok := graph.State("DONE")
	require.True(t, ok)
	assert.Equal(t, ColumnDone, col)
}

func TestCompileSingleSpecNormalisedToList(t *testing.T) {
	graph, err := Compile([]byte(validDoc), "work")
	require.NoError(t, err)

	edges := graph.Node("work").Results["error"]
	require.Len(t, edges, 1)
	assert.Equal(t, "Failed", edges[0].Name)
}

func TestCompileCollectsAllViolations(t *testing.T) {
	doc := `
states:
  Started: inProgress

work:
  executor: work
  results:
    success:
      outcome: UNMAPPED
      on: NotAGroup
      next: missing_act

orphan:
  executor: orphan
  results:
    success:
      outcome: Started
`
	_, err := Compile([]byte(doc), "work")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrGraphInvalid)

	// Every violation appears in the single fatal error.
	assert.Contains(t, err.Error(), `outcome "UNMAPPED" has no state mapping`)
	assert.Contains(t, err.Error(), `group "NotAGroup" does not exist`)
	assert.Contains(t, err.Error(), `next act "missing_act" does not exist`)
	assert.Contains(t, err.Error(), `node "orphan": executor-bearing node unreachable`)
}

func TestCompileInTargetMustBePhaseGroup(t *testing.T) {
	doc := `
states:
  DONE: done

other:
  executor: other
  results:
    success:
      outcome: DONE

work:
  executor: work
  results:
    success:
      outcome: DONE
      on: other
      next: other
`
	_, err := Compile([]byte(doc), "work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"other" is not a phase group`)
}

func TestCompileExecutorWithoutResults(t *testing.T) {
	doc := `
states:
  DONE: done

work:
  executor: work
`
	_, err := Compile([]byte(doc), "work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no results")
}

func TestCompileMissingRootAct(t *testing.T) {
	_, err := Compile([]byte(validDoc), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `root act "nope" does not exist`)
}

func TestCompileUnknownColumn(t *testing.T) {
	doc := `
states:
  DONE: shipping

work:
  executor: work
  results:
    success:
      outcome: DONE
`
	_, err := Compile([]byte(doc), "work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown board column "shipping"`)
}

func TestCompileMalformedYAML(t *testing.T) {
	_, err := Compile([]byte("states: [not: a: map"), "work")
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDefaultGraphCompiles(t *testing.T) {
	graph := DefaultGraph()
	require.NotNil(t, graph)
	assert.Equal(t, DefaultRootAct, graph.Root)

	// Every standard act is executor-bearing and reachable.
	for _, name := range []string{
		"implement", "await_reply", "review", "revise", "merge",
		"await_deploy", "run_deploy", "release", "reflect",
	} {
		node := graph.Node(name)
		require.NotNil(t, node, name)
		assert.False(t, node.IsPhaseGroup(), name)
	}
	for _, name := range []string{"Build", "Review", "Deploy", "Release"} {
		node := graph.Node(name)
		require.NotNil(t, node, name)
		assert.True(t, node.IsPhaseGroup(), name)
	}
}

func TestColumnValidation(t *testing.T) {
	for _, col := range Columns() {
		assert.True(t, col.IsValid(), string(col))
	}
	assert.False(t, Column("shipping").IsValid())
	assert.False(t, Column("").IsValid())
}
