package domain

// RaidChannel описывает канал, в котором объявляются рейды заданного уровня.
type RaidChannel struct {
	ID    string
	Level int
	Event bool
}

// InfoChannel описывает канал с досками рейдов выбранных уровней.
type InfoChannel struct {
	ID     string
	Levels []int
	PostTo []string
}

// HasLevel сообщает, показывает ли канал рейды уровня.
func (c InfoChannel) HasLevel(level int) bool {
	for _, l := range c.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Region связывает сервер чата с геозоной и каналами.
type Region struct {
	Name         string
	GuildID      string
	Fence        [][2]float64
	RaidChannels []RaidChannel
	InfoChannels []InfoChannel
}

// RaidChannel ищет канал рейдов по идентификатору.
func (r Region) RaidChannel(id string) (RaidChannel, bool) {
	for _, ch := range r.RaidChannels {
		if ch.ID == id {
			return ch, true
		}
	}
	return RaidChannel{}, false
}
