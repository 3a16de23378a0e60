package classifier

import "github.com/joescharf/civic/internal/models"

// Evaluation summarises how the full Predict pipeline scores against
// labelled examples.
type Evaluation struct {
	Total        int
	Correct      int
	ByDepartment map[models.Department]DepartmentScore
	Misses       []Miss
}

// DepartmentScore counts hits per expected department.
type DepartmentScore struct {
	Total   int
	Correct int
}

// Miss is an example the classifier routed to the wrong department.
type Miss struct {
	Text     string
	Expected string
	Got      models.Department
	Source   Source
}

// Accuracy returns the share of correctly routed examples, 0 when empty.
func (e Evaluation) Accuracy() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Correct) / float64(e.Total)
}

// Evaluate runs every example through Explain and compares departments.
func (c *Classifier) Evaluate(examples []Example) Evaluation {
	ev := Evaluation{ByDepartment: make(map[models.Department]DepartmentScore)}
	for _, ex := range examples {
		p := c.Explain(ex.Text)
		want, _ := models.ParseDepartment(ex.Department)

		score := ev.ByDepartment[want]
		score.Total++
		ev.Total++
		if want != "" && p.Department == want {
			score.Correct++
			ev.Correct++
		} else {
			ev.Misses = append(ev.Misses, Miss{
				Text:     ex.Text,
				Expected: ex.Department,
				Got:      p.Department,
				Source:   p.DepartmentSource,
			})
		}
		ev.ByDepartment[want] = score
	}
	return ev
}
