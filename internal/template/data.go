package template

import (
	"html/template"
	"math"
	"time"

	"telecom-console/internal/config"
	"telecom-console/internal/model"
	"telecom-console/internal/profile"
	"telecom-console/internal/traffic"
)

// Page carries the fields shared by every snapshot.
type Page struct {
	Title       string
	GeneratedAt time.Time
	Stylesheet  template.CSS
}

// UsersPage is the data of the user table snapshot.
type UsersPage struct {
	Page
	Users     []UserRow
	Indicator string
	Traffic   *TrafficData
}

type UserRow struct {
	Account   string
	Name      string
	Phone     string
	PackageID string
	Balance   string
}

// TrafficData is the hourly chart rendered as proportional bars.
type TrafficData struct {
	Title string
	Hours []HourBar
}

type HourBar struct {
	Label   string
	Count   string
	Percent int
}

// ProfilePage is the data of the account profile snapshot.
type ProfilePage struct {
	Page
	profile.View
	Packages []PackageRow
}

type PackageRow struct {
	ID          int
	Description string
	Price       string
}

// NewUsersPage builds the table snapshot from loaded rows.
func NewUsersPage(rows []model.UserRecord, indicator string) *UsersPage {
	out := &UsersPage{Indicator: indicator, Users: make([]UserRow, 0, len(rows))}
	for _, r := range rows {
		out.Users = append(out.Users, UserRow{
			Account:   r.Account.String(),
			Name:      r.Name.String(),
			Phone:     r.Phone.String(),
			PackageID: r.PackageID.String(),
			Balance:   r.Balance.String(),
		})
	}
	return out
}

// NewTrafficData scales counts against the busiest hour.
func NewTrafficData(c traffic.Counts) *TrafficData {
	_, peak := c.Peak()
	labels := traffic.Labels()
	out := &TrafficData{Title: traffic.Title, Hours: make([]HourBar, 24)}
	for h, v := range c {
		pct := 0
		if peak > 0 {
			pct = int(math.Round(v / peak * 100))
		}
		out.Hours[h] = HourBar{Label: labels[h], Count: model.FormatNumber(v), Percent: pct}
	}
	return out
}

// NewProfilePage builds the profile snapshot with the package catalog.
func NewProfilePage(v profile.View, packages []config.Package) *ProfilePage {
	out := &ProfilePage{View: v}
	for _, p := range packages {
		desc, price := profile.PackageDetail(p)
		out.Packages = append(out.Packages, PackageRow{ID: p.ID, Description: desc, Price: price})
	}
	return out
}
