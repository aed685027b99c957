package model

// Board is a fixed starting position every matchup is played on.
//
// StartTrace is an opaque encoded move sequence that produces the opening
// position. The engine never interprets it — it hands the trace to the match
// runner and stores whatever end traces come back. Boards are static seed
// data, inserted once by migration and never mutated at runtime.
type Board struct {
	ID         int64  `json:"id"`
	StartTrace string `json:"start_trace"`
}
