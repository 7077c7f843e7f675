package profile

import (
	"telecom-console/internal/config"
	"telecom-console/internal/model"
)

const defaultDuration = "0小时"

// View is the read-only projection rendered by the user console.
type View struct {
	Account               string
	Name                  string
	Phone                 string
	PackageID             string
	Balance               string
	UsedDurationText      string
	RemainingDurationText string
}

func buildView(user model.UserRecord, remaining model.RemainingTime) View {
	return View{
		Account:               user.Account.String(),
		Name:                  user.Name.String(),
		Phone:                 user.Phone.String(),
		PackageID:             user.PackageID.String(),
		Balance:               user.Balance.String(),
		UsedDurationText:      durationText(remaining.UsedDurationText),
		RemainingDurationText: durationText(remaining.RemainingDurationText),
	}
}

func durationText(s model.Scalar) string {
	if !s.IsSet() {
		return defaultDuration
	}
	return s.String()
}

// BalanceText renders the balance with the currency sign.
func (v View) BalanceText() string {
	return "￥" + v.Balance
}

// PackageDetail describes a catalog entry for the package picker.
func PackageDetail(p config.Package) (description, price string) {
	cost := p.Cost.String()
	if cost == "" {
		return p.Duration, "—"
	}
	return p.Duration, cost + " 元"
}
