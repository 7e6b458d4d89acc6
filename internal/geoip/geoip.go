// Package geoip resolves viewer locations for reel view analytics from a
// MaxMind database. When no database is configured every lookup resolves
// to an empty Location and views are recorded without geography.
package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Location is the coarse geography attached to a recorded reel view.
type Location struct {
	Country string
	City    string
}

type Resolver struct {
	db *maxminddb.Reader
}

type mmdbRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// New opens the database at dbPath. A missing or unreadable database is
// not fatal; the resolver degrades to empty lookups.
func New(dbPath string) (*Resolver, error) {
	if dbPath == "" {
		return &Resolver{}, nil
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, view geography disabled", "path", dbPath, "error", err)
		return &Resolver{}, nil
	}
	slog.Info("geoip: loaded database", "path", dbPath)
	return &Resolver{db: db}, nil
}

func (r *Resolver) Lookup(ipStr string) Location {
	if r.db == nil || ipStr == "" {
		return Location{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}
	}
	var rec mmdbRecord
	if err := r.db.Lookup(ip, &rec); err != nil {
		return Location{}
	}
	return Location{Country: rec.Country.ISOCode, City: rec.City.Names["en"]}
}

func (r *Resolver) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
