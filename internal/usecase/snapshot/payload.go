package snapshot

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Wire shapes of the GetUserStatus response. Protobuf JSON omits zero values,
// so every field is optional; pointers distinguish "absent" from "zero".

type payload struct {
	UserStatus *userStatus `json:"userStatus"`
	// Older servers return these beside userStatus instead of inside it.
	UserTier               *userTier        `json:"userTier"`
	CascadeModelConfigData *modelConfigData `json:"cascadeModelConfigData"`
}

type userStatus struct {
	Name                   *string          `json:"name"`
	Email                  *string          `json:"email"`
	PlanStatus             *planStatus      `json:"planStatus"`
	UserTier               *userTier        `json:"userTier"`
	CascadeModelConfigData *modelConfigData `json:"cascadeModelConfigData"`
}

type planStatus struct {
	PlanInfo               *planInfo `json:"planInfo"`
	AvailablePromptCredits *flexInt  `json:"availablePromptCredits"`
	AvailableFlowCredits   *flexInt  `json:"availableFlowCredits"`
}

type planInfo struct {
	TeamsTier            *string  `json:"teamsTier"`
	PlanName             *string  `json:"planName"`
	MonthlyPromptCredits *flexInt `json:"monthlyPromptCredits"`
	MonthlyFlowCredits   *flexInt `json:"monthlyFlowCredits"`
	CanBuyMoreCredits    bool     `json:"canBuyMoreCredits"`
	BrowserEnabled       bool     `json:"browserEnabled"`
}

type userTier struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

type modelConfigData struct {
	ClientModelConfigs []modelConfig `json:"clientModelConfigs"`
	ClientModelSorts   []modelSort   `json:"clientModelSorts"`
}

type modelConfig struct {
	Label          string        `json:"label"`
	ModelOrAlias   *modelOrAlias `json:"modelOrAlias"`
	QuotaInfo      *quotaInfo    `json:"quotaInfo"`
	SupportsImages bool          `json:"supportsImages"`
	IsRecommended  bool          `json:"isRecommended"`
}

type modelOrAlias struct {
	Model string `json:"model"`
	Alias string `json:"alias"`
}

type quotaInfo struct {
	RemainingFraction float64 `json:"remainingFraction"`
	ResetTime         string  `json:"resetTime"`
}

type modelSort struct {
	Name   string      `json:"name"`
	Groups []sortGroup `json:"groups"`
}

type sortGroup struct {
	ModelLabels []string `json:"modelLabels"`
}

// flexInt accepts protobuf int64 values, which arrive as JSON strings, as well
// as plain numbers.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		var fl float64
		if ferr := json.Unmarshal(b, &fl); ferr != nil {
			return err
		}
		n = int64(fl)
	}
	*f = flexInt(n)
	return nil
}
