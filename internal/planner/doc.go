// Package planner builds the band layout plan for a stacking run.
//
// The plan pairs every input dataset with its resolved band selection and
// assigns each entry a contiguous destination band range in the output. The
// copy phase executes the plan in order, so destination band assignment is
// deterministic: input-list order, starting at band 1, with no gaps and no
// overlaps.
//
// Key responsibilities:
//   - Pair inputs with selection expressions (missing expressions select all)
//   - Resolve selections against each input's probed band count
//   - Accumulate the total output band count
package planner
