package scores

// Progress is the campaign state: the highest unlocked level and the best
// star rating earned on each level.
type Progress struct {
	Unlocked int         `json:"unlocked"`
	Stars    map[int]int `json:"stars"`
}

// NewProgress returns progress with only the first level open.
func NewProgress() Progress {
	return Progress{Unlocked: 1, Stars: make(map[int]int)}
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	c := Progress{Unlocked: p.Unlocked, Stars: make(map[int]int, len(p.Stars))}
	for level, stars := range p.Stars {
		c.Stars[level] = stars
	}
	return c
}

// IsUnlocked reports whether level may be played.
func (p Progress) IsUnlocked(level int) bool {
	return level >= 1 && level <= p.Unlocked
}

// TotalStars sums the best stars of every level.
func (p Progress) TotalStars() int {
	total := 0
	for _, s := range p.Stars {
		total += s
	}
	return total
}

// complete records a safe landing on level with the given stars. It returns
// the newly unlocked level, or 0 when nothing new opened.
func (p *Progress) complete(level, stars, maxLevel int) int {
	if p.Stars == nil {
		p.Stars = make(map[int]int)
	}
	if stars > p.Stars[level] {
		p.Stars[level] = stars
	}
	next := level + 1
	if next > maxLevel || next <= p.Unlocked {
		return 0
	}
	p.Unlocked = next
	return next
}
