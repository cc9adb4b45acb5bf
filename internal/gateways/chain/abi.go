package chain

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodQuestStatus    = "getPlayerQuestStatus"
	methodPlayerData     = "getPlayerData"
	methodCanClaim       = "canClaimQuestReward"
	methodRewardAmount   = "getQuestRewardAmount"
	methodDailyReq       = "DAILY_FLIP_REQUIREMENT"
	methodWeeklyReq      = "WEEKLY_FLIP_REQUIREMENT"
	methodMonthlyReq     = "MONTHLY_STREAK_REQUIREMENT"
	methodCompleteLogin  = "completeDailyLogin"
	methodClaimReward    = "claimQuestReward"
	eventRewardClaimed   = "QuestRewardClaimed"
	outputLastLogin      = "lastLoginTimestamp"
	outputLastLoginAlias = "lastLoginDate"
)

// QuestABI is the subset of the coinflip contract ABI used for quests.
const QuestABI = `[
 {"type":"function","name":"getPlayerQuestStatus","stateMutability":"view",
  "inputs":[{"name":"player","type":"address"}],
  "outputs":[
   {"name":"dailyLoginCompleted","type":"bool"},
   {"name":"dailyFlipCompleted","type":"bool"},
   {"name":"weeklyFlipsCompleted","type":"bool"},
   {"name":"monthlyStreakCompleted","type":"bool"},
   {"name":"dailyFlipsToday","type":"uint256"},
   {"name":"weeklyFlips","type":"uint256"},
   {"name":"monthlyStreak","type":"uint256"}]},
 {"type":"function","name":"getPlayerData","stateMutability":"view",
  "inputs":[{"name":"player","type":"address"}],
  "outputs":[
   {"name":"totalFlips","type":"uint256"},
   {"name":"totalWins","type":"uint256"},
   {"name":"dailyFlipsToday","type":"uint256"},
   {"name":"weeklyFlips","type":"uint256"},
   {"name":"monthlyStreak","type":"uint256"},
   {"name":"lastFlipDate","type":"uint256"},
   {"name":"lastLoginTimestamp","type":"uint256"},
   {"name":"dailyLoginCompleted","type":"bool"},
   {"name":"dailyFlipCompleted","type":"bool"},
   {"name":"weeklyFlipsCompleted","type":"bool"},
   {"name":"monthlyStreakCompleted","type":"bool"}]},
 {"type":"function","name":"canClaimQuestReward","stateMutability":"view",
  "inputs":[{"name":"player","type":"address"},{"name":"questType","type":"uint8"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getQuestRewardAmount","stateMutability":"view",
  "inputs":[{"name":"player","type":"address"},{"name":"questType","type":"uint8"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"DAILY_FLIP_REQUIREMENT","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"WEEKLY_FLIP_REQUIREMENT","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"MONTHLY_STREAK_REQUIREMENT","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"completeDailyLogin","stateMutability":"nonpayable",
  "inputs":[],"outputs":[]},
 {"type":"function","name":"claimQuestReward","stateMutability":"nonpayable",
  "inputs":[{"name":"questType","type":"uint8"}],"outputs":[]},
 {"type":"event","name":"QuestRewardClaimed","anonymous":false,
  "inputs":[
   {"name":"player","type":"address","indexed":true},
   {"name":"questType","type":"uint8","indexed":false},
   {"name":"amount","type":"uint256","indexed":false}]}
]`

var required = []string{
	methodQuestStatus, methodCanClaim, methodRewardAmount,
	methodCompleteLogin, methodClaimReward,
}

// LoadABI parses the ABI at path, or QuestABI when path is empty, and checks
// that every method the client calls is present.
func LoadABI(path string) (abi.ABI, error) {
	src := QuestABI
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to read abi: %w", err)
		}
		src = string(b)
	}

	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi: %w", err)
	}
	for _, m := range required {
		if _, ok := parsed.Methods[m]; !ok {
			return abi.ABI{}, fmt.Errorf("abi is missing method %s", m)
		}
	}
	if _, ok := parsed.Events[eventRewardClaimed]; !ok {
		return abi.ABI{}, fmt.Errorf("abi is missing event %s", eventRewardClaimed)
	}
	return parsed, nil
}

// lastLoginIndex finds the login timestamp among getPlayerData's outputs.
func lastLoginIndex(parsed abi.ABI) (int, bool) {
	m, ok := parsed.Methods[methodPlayerData]
	if !ok {
		return 0, false
	}
	for i, out := range m.Outputs {
		if out.Name == outputLastLogin || out.Name == outputLastLoginAlias {
			return i, true
		}
	}
	return 0, false
}
