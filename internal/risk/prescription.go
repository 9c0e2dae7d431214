package risk

import (
	"fmt"

	"github.com/aristath/propsight/pkg/formulas"
)

// Action is a prescribed investment action
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionHold Action = "Hold"
	ActionSell Action = "Sell"
	ActionWait Action = "Wait"
)

// Prescription pairs an action with its explanation
type Prescription struct {
	Action      Action  `json:"action"`
	Explanation string  `json:"explanation"`
	ROIPercent  float64 `json:"roi_percent"`
}

// Prescribe maps a composite risk score and expected growth to an action.
// Rules are evaluated in order, first match wins. Pure and total: malformed
// numbers coerce to 0.
func Prescribe(riskScore, growthRate float64) Prescription {
	riskScore = finiteOr(riskScore, 0)
	growthRate = finiteOr(growthRate, 0)

	roi := formulas.RoundTo(growthRate*100.0, 2)

	switch {
	case riskScore < 30 && roi > 3:
		return Prescription{
			Action:      ActionBuy,
			Explanation: fmt.Sprintf("Low risk and strong expected growth (%.2f%%).", roi),
			ROIPercent:  roi,
		}
	case riskScore < 60 && roi > 0:
		return Prescription{
			Action:      ActionHold,
			Explanation: fmt.Sprintf("Moderate risk with mild positive growth (%.2f%%).", roi),
			ROIPercent:  roi,
		}
	case roi < 0:
		return Prescription{
			Action:      ActionSell,
			Explanation: fmt.Sprintf("Negative growth forecast (%.2f%%). High caution.", roi),
			ROIPercent:  roi,
		}
	default:
		return Prescription{
			Action:      ActionWait,
			Explanation: fmt.Sprintf("No clear signal (risk %.2f, expected %.2f%%).", riskScore, roi),
			ROIPercent:  roi,
		}
	}
}
