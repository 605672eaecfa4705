package dc03

import (
	"strings"
	"time"

	"github.com/vanovost/dc09spt/clog"
	"github.com/vanovost/dc09spt/msgfield"
)

// Params is the set of SIA DC-03 message fields recognised from the
// message parameter map (spec.md §6).
type Params struct {
	Account  string // overrides the SPT-level account for this message
	Area     string
	AreaName string
	Zone     string
	ZoneName string
	User     string
	UserName string
	Door     string // door number for door-class codes; defaults to Zone
	Code     string // 2-char DC-03 event code; default "RP"
	Text     string // free text, or the subject text for a code-driven message
	Time     string // "HH:MM:SS", or the literal "now"
	Flavor   string // "xsia" switches text encoding to *"text"NM
}

// Encode builds a SIA DC-03 payload ending in ']', ready to be framed by
// dc09.Block.Build. sptAccount is used when Params.Account is empty.
func Encode(sptAccount string, p Params, log clog.Clog) (string, error) {
	for name, v := range map[string]string{
		"account": firstNonEmpty(p.Account, sptAccount), "areaname": p.AreaName,
		"zonename": p.ZoneName, "username": p.UserName, "code": p.Code,
		"text": p.Text,
	} {
		if v != "" {
			if err := msgfield.Text(v); err != nil {
				return "", wrapField(name, err)
			}
		}
	}
	for name, v := range map[string]string{"area": p.Area, "zone": p.Zone, "user": p.User, "door": p.Door} {
		if v != "" {
			if err := msgfield.Numeric(v); err != nil {
				return "", wrapField(name, err)
			}
		}
	}

	account := firstNonEmpty(p.Account, sptAccount)

	var msg strings.Builder
	if account == "" {
		msg.WriteString("#0000|")
	} else {
		msg.WriteString("#" + account + "|")
	}

	code := p.Code
	text := p.Text

	if (code == "" || code == "A") && text != "" {
		msg.WriteString("A" + text)
		if p.Zone != "" || p.Area != "" || p.User != "" {
			log.Warn("dc03: text message can not carry zone, area or user id's; they were dropped")
		}
		return msg.String() + "]", nil
	}

	msg.WriteString("N")
	if code == "" {
		code = "RP"
	}

	class := Class(code)

	if p.Area != "" && class != ClassArea {
		msg.WriteString("ri" + p.Area)
		if p.AreaName != "" {
			msg.WriteString("^" + p.AreaName + "^")
		}
	}
	if p.User != "" && class != ClassUser {
		msg.WriteString("id" + p.User)
		if p.UserName != "" {
			msg.WriteString("^" + p.UserName + "^")
		}
	}
	if p.Time != "" {
		t := p.Time
		if t == "now" {
			t = time.Now().Format("15:04:05")
		}
		msg.WriteString("ti" + t)
	}
	msg.WriteString(code)

	switch class {
	case ClassUser:
		if p.User != "" {
			msg.WriteString(p.User)
		}
		if p.Zone != "" {
			log.Warn("dc03: zone %s not included in message because code %s is user related", p.Zone, code)
		}
	case ClassArea:
		if p.Area != "" {
			msg.WriteString(p.Area)
			if p.Zone != "" {
				log.Warn("dc03: zone %s not included in message because code %s is area related", p.Zone, code)
			}
		} else if p.Zone != "" {
			msg.WriteString(p.Zone)
			if p.ZoneName != "" {
				msg.WriteString("^" + p.ZoneName + "^")
			}
		}
	case ClassDoor:
		door := p.Door
		if door == "" {
			door = p.Zone
		}
		if door != "" {
			msg.WriteString(door)
		}
	default:
		if p.Zone != "" {
			msg.WriteString(p.Zone)
			if p.ZoneName != "" {
				msg.WriteString("^" + p.ZoneName + "^")
			}
		}
	}

	if text != "" {
		if p.Flavor == "xsia" {
			msg.WriteString(`*"` + text + `"NM`)
		} else {
			msg.WriteString("|A" + text)
		}
	}

	return msg.String() + "]", nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func wrapField(name string, err error) error {
	return &FieldError{Field: name, Err: err}
}

// FieldError reports which message-parameter-map field failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }
