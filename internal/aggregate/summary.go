package aggregate

import (
	"strconv"

	"github.com/nerrad567/area-fans/internal/state"
)

// StateReader is the read side of the live state store.
type StateReader interface {
	Get(entityID string) (state.State, bool)
}

// Summary is the derived state of a member list.
type Summary struct {
	Count   int
	Total   int
	On      bool
	FansOn  []string
	FansOff []string
}

// CountOf renders "count/total".
func (s Summary) CountOf() string {
	return strconv.Itoa(s.Count) + "/" + strconv.Itoa(s.Total)
}

// Summarize scans every member. A member is on only when its state is
// exactly "on"; unknown members and any other state count as off. Both
// lists keep member order.
func Summarize(members []string, states StateReader) Summary {
	s := Summary{
		Total:   len(members),
		FansOn:  []string{},
		FansOff: []string{},
	}
	for _, id := range members {
		st, ok := states.Get(id)
		if ok && st.IsOn() {
			s.Count++
			s.FansOn = append(s.FansOn, id)
		} else {
			s.FansOff = append(s.FansOff, id)
		}
	}
	s.On = s.Count > 0
	return s
}
