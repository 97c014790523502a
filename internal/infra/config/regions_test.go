package config

import (
	"testing"

	"taubsi/internal/domain"
)

const sampleRegions = `
subscriber_role: raid-alarm
emojis:
  remote: "<:fernraid:728917159216021525>"
  teams:
    mystic: "<:team_blau:423192039149273088>"
regions:
  - name: Mitte
    guild_id: "1001"
    fence: [[50.0, 8.0], [50.0, 8.2], [50.2, 8.2], [50.2, 8.0]]
    raid_channels:
      - {id: "11", level: 5}
      - {id: "12", level: 6, event: true}
    info_channels:
      - {id: "21", levels: [5], post_to: ["11"]}
`

func TestParseRegions(t *testing.T) {
	regions, err := ParseRegions([]byte(sampleRegions))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if regions.SubscriberRole != "raid-alarm" {
		t.Fatalf("неверная роль подписчика: %s", regions.SubscriberRole)
	}
	if regions.Emojis.Remote != "<:fernraid:728917159216021525>" {
		t.Fatalf("эмодзи удалённого участия не применён")
	}
	if regions.Emojis.Late != "🕐" {
		t.Fatalf("ожидали эмодзи по умолчанию для опоздания")
	}
	if regions.Emojis.Teams[domain.TeamMystic] != "<:team_blau:423192039149273088>" {
		t.Fatalf("эмодзи команды не применён")
	}
	if len(regions.Regions) != 1 {
		t.Fatalf("ожидали 1 регион, получили %d", len(regions.Regions))
	}
	region := regions.Regions[0]
	ch, ok := region.RaidChannel("12")
	if !ok || !ch.Event || ch.Level != 6 {
		t.Fatalf("неверный канал событий: %+v", ch)
	}
	if len(region.InfoChannels) != 1 || region.InfoChannels[0].PostTo[0] != "11" {
		t.Fatalf("неверный инфо-канал: %+v", region.InfoChannels)
	}
}

func TestParseRegionsRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"без геозоны":      "regions:\n  - name: A\n    fence: [[1, 1]]\n",
		"дубликат канала":  "regions:\n  - name: A\n    fence: [[0,0],[0,1],[1,1]]\n    raid_channels: [{id: \"1\", level: 5}, {id: \"1\", level: 3}]\n",
		"неизвестная команда": "emojis:\n  teams:\n    rocket: x\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRegions([]byte(data)); err == nil {
				t.Fatalf("ожидали ошибку")
			}
		})
	}
}
