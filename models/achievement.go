package models

// AchievementTrigger unlocks an achievement once the tracked account stat
// reaches the threshold value.
type AchievementTrigger struct {
	Stat  Field `json:"stat"`
	Value int64 `json:"value"`
}

// Achievement is a configured achievement definition. Unlocks are recorded
// on the account with set-union semantics, so granting twice is a no-op.
type Achievement struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Trigger  AchievementTrigger `json:"trigger"`
	RewardXP int64              `json:"reward_xp"`
}
