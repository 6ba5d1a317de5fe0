package database

import (
	"net/url"
)

// ConstructDatabaseURL points baseURL at databaseName, replacing any database already in
// its path, and defaults sslmode to disable. An empty name or an unparseable URL leaves
// baseURL untouched so the driver reports the problem on connect.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	u.Path = "/" + databaseName
	u.RawPath = ""

	if !u.Query().Has("sslmode") {
		if u.RawQuery != "" {
			u.RawQuery += "&"
		}
		u.RawQuery += "sslmode=disable"
	}

	return u.String()
}
