package library

import "sort"

// Texts returns every chunk text in natural order.
func (l *Library) Texts() []string {
	out := make([]string, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.chunks[id].Text)
	}
	return out
}

// UniqueInfos returns chunk infos deduplicated by url. When the library
// carries similarity the infos are ordered by it, highest first.
func (l *Library) UniqueInfos() []Info {
	type scoredInfo struct {
		score float64
		info  Info
	}
	items := make([]scoredInfo, 0, len(l.ids))
	for _, id := range l.ids {
		c := l.chunks[id]
		if c.Info == nil {
			continue
		}
		item := scoredInfo{info: c.Info}
		if c.Similarity != nil {
			item.score = *c.Similarity
		}
		items = append(items, item)
	}
	if !l.omit.Omits(FieldSimilarity) {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].score > items[j].score
		})
	}
	seen := make(map[string]bool, len(items))
	out := make([]Info, 0, len(items))
	for _, item := range items {
		url := item.info.URL()
		if seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, item.info.Clone())
	}
	return out
}
