// Package dc05 builds SIA DC-05 (Ademco Contact-ID) numeric event
// payloads for framing inside a DC-09 block.
package dc05

import (
	"fmt"

	"github.com/vanovost/dc09spt/msgfield"
)

var userCodes = map[string]bool{
	"121": true, "313": true,
	"400": true, "401": true, "402": true, "403": true, "404": true, "405": true,
	"406": true, "407": true, "408": true, "409": true,
	"411": true, "412": true, "413": true, "414": true, "415": true,
	"421": true, "422": true, "424": true, "425": true,
	"429": true, "430": true, "431": true,
	"441": true, "442": true,
	"450": true, "451": true, "452": true, "453": true, "454": true, "455": true,
	"456": true, "457": true, "458": true, "459": true,
	"462": true, "463": true, "464": true, "466": true,
	"574": true, "604": true, "607": true, "625": true, "642": true, "652": true, "653": true,
}

// IsUser reports whether a 3-digit DC-05 code carries a user-number
// subject in place of the zone.
func IsUser(code string) bool { return userCodes[code] }

// Params is the set of DC-05 fields recognised from the message
// parameter map.
type Params struct {
	Account string // overrides the SPT-level account for this message
	Area    string // 2-digit area, default "00"
	Zone    string // 3-digit zone, default "000"
	User    string // 3-digit user; used instead of zone for user-class codes
	Code    string // 3-digit event code, default "602"
	Q       string // qualifier: "1" new alarm, "3" new restore, "6" old alarm; default "1"
}

// ErrInvalidField is returned for a code, qualifier or account/area/zone/user
// value that does not meet the DC-05 grammar.
type ErrInvalidField struct {
	Field, Reason string
}

func (e *ErrInvalidField) Error() string {
	return fmt.Sprintf("dc05: %s: %s", e.Field, e.Reason)
}

// Encode builds a DC-05 payload "#<account>|<Q><CCC> <AA> <ZZZ>]" (or
// "... <AA> <UUU>]" for user-class codes with a user value present).
func Encode(sptAccount string, p Params) (string, error) {
	account := p.Account
	if account == "" {
		account = sptAccount
	}
	if account != "" {
		if err := msgfield.Text(account); err != nil {
			return "", &ErrInvalidField{"account", err.Error()}
		}
	}

	code := p.Code
	if code == "" {
		code = "602"
	}
	if err := msgfield.Numeric(code); err != nil {
		return "", &ErrInvalidField{"code", err.Error()}
	}
	if len(code) != 3 {
		return "", &ErrInvalidField{"code", "must be exactly 3 digits"}
	}

	q := p.Q
	if q == "" {
		q = "1"
	}
	if q != "1" && q != "3" && q != "6" {
		return "", &ErrInvalidField{"q", "must be 1, 3 or 6"}
	}

	area := p.Area
	if area == "" {
		area = "00"
	}
	if err := msgfield.Numeric(area); err != nil {
		return "", &ErrInvalidField{"area", err.Error()}
	}
	area = msgfield.PadLeft(area, 2)

	var subject string
	if IsUser(code) && p.User != "" {
		if err := msgfield.Numeric(p.User); err != nil {
			return "", &ErrInvalidField{"user", err.Error()}
		}
		subject = msgfield.PadLeft(p.User, 3)
	} else {
		zone := p.Zone
		if zone == "" {
			zone = "000"
		}
		if err := msgfield.Numeric(zone); err != nil {
			return "", &ErrInvalidField{"zone", err.Error()}
		}
		subject = msgfield.PadLeft(zone, 3)
	}

	var prefix string
	if account == "" {
		prefix = "#0000|"
	} else {
		prefix = "#" + account + "|"
	}

	return fmt.Sprintf("%s%s%s %s %s]", prefix, q, code, area, subject), nil
}
