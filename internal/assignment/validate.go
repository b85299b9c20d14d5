package assignment

import "fmt"

// Validate checks the model the way the optimization service validates a
// request body and returns one message per problem. An empty result means
// the model is ready to optimize.
func (m *Model) Validate() []string {
	var problems []string
	if len(m.holes) == 0 {
		problems = append(problems, "No holes defined")
	}

	seen := make(map[int]bool)
	for _, row := range m.rows {
		if row.StartFromPrevHole < 1 {
			problems = append(problems, fmt.Sprintf("Row %d: start_from_prev_hole must be >= 1", row.ID))
		}
		for _, id := range row.HoleIDs {
			if _, ok := m.known[id]; !ok {
				problems = append(problems, fmt.Sprintf("Row %d: Hole %d not found", row.ID, id))
			}
			if seen[id] {
				problems = append(problems, fmt.Sprintf("Row %d: Hole %d assigned more than once", row.ID, id))
			}
			seen[id] = true
		}
	}
	return problems
}
