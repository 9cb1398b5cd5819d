package entity

import "time"

// Snapshot is the serializable form of the store: the retained articles in
// retention order and the time of the last successful refresh. A zero
// LastRefreshAt means the store was never refreshed.
type Snapshot struct {
	Articles      []Article `json:"articles"`
	LastRefreshAt time.Time `json:"last_refresh_at"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{LastRefreshAt: s.LastRefreshAt}
	if s.Articles != nil {
		out.Articles = make([]Article, len(s.Articles))
		for i, a := range s.Articles {
			out.Articles[i] = a.Clone()
		}
	}
	return out
}
