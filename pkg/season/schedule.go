package season

import (
	"encoding/json"
	"math"

	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/utils"
)

// Schedule is the ordered list of configured seasons. Seasons are static
// configuration; changing them is a redeploy.
type Schedule struct {
	seasons []contest.Season
}

// ScheduleFromEnv parses SEASON_SCHEDULE, a JSON array of season objects.
// With no configuration a single open-ended season 1 is assumed so local
// development works without setup.
func ScheduleFromEnv(logger *zap.Logger) *Schedule {
	raw := utils.Env("SEASON_SCHEDULE", "")
	if raw == "" {
		return &Schedule{seasons: []contest.Season{{
			SeasonID: 1,
			EndTime:  math.MaxInt64,
		}}}
	}

	var seasons []contest.Season
	if err := json.Unmarshal([]byte(raw), &seasons); err != nil {
		logger.Error("Invalid SEASON_SCHEDULE, falling back to open-ended season 1",
			zap.Error(err))
		return &Schedule{seasons: []contest.Season{{SeasonID: 1, EndTime: math.MaxInt64}}}
	}
	return &Schedule{seasons: seasons}
}

func NewSchedule(seasons []contest.Season) *Schedule {
	return &Schedule{seasons: seasons}
}

// ByID looks up a season by id.
func (s *Schedule) ByID(id uint64) (contest.Season, bool) {
	for _, season := range s.seasons {
		if season.SeasonID == id {
			return season, true
		}
	}
	return contest.Season{}, false
}

// For resolves which season a contest ending at endTime belongs to.
func (s *Schedule) For(endTime int64) (contest.Season, bool) {
	for _, season := range s.seasons {
		if season.Contains(endTime) {
			return season, true
		}
	}
	return contest.Season{}, false
}

// Current returns the season containing now.
func (s *Schedule) Current(now int64) (contest.Season, bool) {
	return s.For(now)
}
