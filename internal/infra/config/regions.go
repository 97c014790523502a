package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"taubsi/internal/domain"
)

// Regions описывает разводку серверов, каналов и геозон.
type Regions struct {
	SubscriberRole string
	Emojis         domain.Emojis
	Regions        []domain.Region
}

type regionsFile struct {
	SubscriberRole string `yaml:"subscriber_role"`
	Emojis         struct {
		Numbers map[int]string    `yaml:"numbers"`
		Late    string            `yaml:"late"`
		Remote  string            `yaml:"remote"`
		Remove  string            `yaml:"remove"`
		Teams   map[string]string `yaml:"teams"`
	} `yaml:"emojis"`
	Regions []struct {
		Name         string       `yaml:"name"`
		GuildID      string       `yaml:"guild_id"`
		Fence        [][2]float64 `yaml:"fence"`
		RaidChannels []struct {
			ID    string `yaml:"id"`
			Level int    `yaml:"level"`
			Event bool   `yaml:"event"`
		} `yaml:"raid_channels"`
		InfoChannels []struct {
			ID     string   `yaml:"id"`
			Levels []int    `yaml:"levels"`
			PostTo []string `yaml:"post_to"`
		} `yaml:"info_channels"`
	} `yaml:"regions"`
}

// LoadRegions читает файл регионов.
func LoadRegions(path string) (Regions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Regions{}, fmt.Errorf("чтение файла регионов: %w", err)
	}
	return ParseRegions(data)
}

// ParseRegions разбирает YAML с регионами.
func ParseRegions(data []byte) (Regions, error) {
	var raw regionsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Regions{}, fmt.Errorf("разбор файла регионов: %w", err)
	}

	out := Regions{SubscriberRole: raw.SubscriberRole, Emojis: domain.DefaultEmojis()}
	if out.SubscriberRole == "" {
		out.SubscriberRole = "raid-notify"
	}
	if len(raw.Emojis.Numbers) > 0 {
		out.Emojis.Numbers = raw.Emojis.Numbers
	}
	if raw.Emojis.Late != "" {
		out.Emojis.Late = raw.Emojis.Late
	}
	if raw.Emojis.Remote != "" {
		out.Emojis.Remote = raw.Emojis.Remote
	}
	if raw.Emojis.Remove != "" {
		out.Emojis.Remove = raw.Emojis.Remove
	}
	for name, emoji := range raw.Emojis.Teams {
		team, ok := domain.ParseTeam(name)
		if !ok {
			return Regions{}, fmt.Errorf("неизвестная команда %q", name)
		}
		out.Emojis.Teams[team] = emoji
	}

	seen := make(map[string]struct{})
	for _, r := range raw.Regions {
		if r.Name == "" {
			return Regions{}, fmt.Errorf("регион без имени")
		}
		if len(r.Fence) < 3 {
			return Regions{}, fmt.Errorf("регион %s: геозона должна содержать минимум 3 точки", r.Name)
		}
		region := domain.Region{Name: r.Name, GuildID: r.GuildID, Fence: r.Fence}
		for _, ch := range r.RaidChannels {
			if _, dup := seen[ch.ID]; dup {
				return Regions{}, fmt.Errorf("канал %s указан дважды", ch.ID)
			}
			seen[ch.ID] = struct{}{}
			region.RaidChannels = append(region.RaidChannels, domain.RaidChannel{ID: ch.ID, Level: ch.Level, Event: ch.Event})
		}
		for _, ch := range r.InfoChannels {
			region.InfoChannels = append(region.InfoChannels, domain.InfoChannel{ID: ch.ID, Levels: ch.Levels, PostTo: ch.PostTo})
		}
		out.Regions = append(out.Regions, region)
	}
	return out, nil
}
