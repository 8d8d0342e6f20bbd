package sync

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
)

// Mapping source paths may use gjson modifiers to normalise values as they
// resolve (e.g. "user.country|@countryName"). The modifiers are part of the
// path syntax, not a templating layer, so they apply anywhere a mapping
// resolves a path.
func init() {
	gjson.AddModifier("pathJoinURL", modPathJoinURL)
	gjson.AddModifier("countryName", modCountryName)
	gjson.AddModifier("phone", modPhone)
	gjson.AddModifier("contains", modContains)
	gjson.AddModifier("now", modNow)
}

// modPathJoinURL joins the resolved value onto the base URL given as the
// modifier argument, e.g. "slug|@pathJoinURL:https://example.org/records".
func modPathJoinURL(json, arg string) string {
	value := gjson.Parse(json)
	if !value.Exists() {
		return ""
	}
	joined, err := url.JoinPath(arg, value.String())
	if err != nil {
		joined = ""
	}
	return fmt.Sprintf(`"%s"`, joined)
}

// modCountryName canonicalises a country to its English name. Alpha-2,
// alpha-3 and full names all match; an unrecognised value resolves to
// nothing.
func modCountryName(json, arg string) string {
	c := countries.ByName(gjson.Parse(json).String())
	if c == countries.Unknown {
		return ""
	}
	return fmt.Sprintf(`"%s"`, c.String())
}

// modPhone splits a phone number into country code and national number,
// with the modifier argument as the default country code. A number already
// prefixed with +<arg> is split directly; anything else goes through
// libphonenumber, and a number it cannot parse keeps an empty country code.
func modPhone(json, arg string) string {
	countryCode := arg
	number := strings.Trim(gjson.Parse(json).String(), `"`)

	prefix := "+" + countryCode
	if strings.HasPrefix(number, prefix) {
		return fmt.Sprintf(`{"c":"%s","n":"%s"}`, countryCode, strings.TrimPrefix(number, prefix))
	}

	code, err := strconv.Atoi(countryCode)
	if err == nil {
		var parsed *libphonenumber.PhoneNumber
		parsed, err = libphonenumber.Parse(number, libphonenumber.GetRegionCodeForCountryCode(code))
		if err == nil {
			countryCode = fmt.Sprintf("%d", parsed.GetCountryCode())
			number = libphonenumber.GetNationalSignificantNumber(parsed)
		}
	}
	if err != nil {
		countryCode = ""
	}
	return fmt.Sprintf(`{"c":"%s","n":"%s"}`, countryCode, number)
}

// modContains reports whether the resolved value, or any element of a
// resolved array, contains the modifier argument as a substring.
func modContains(json, arg string) string {
	value := gjson.Parse(json)
	if value.IsArray() {
		for _, v := range value.Array() {
			if strings.Contains(v.String(), arg) {
				return "true"
			}
		}
		return "false"
	}
	return fmt.Sprintf("%t", strings.Contains(value.String(), arg))
}

// modNow ignores its input and resolves to the current UTC time in RFC 3339.
func modNow(json, arg string) string {
	return fmt.Sprintf(`"%s"`, time.Now().UTC().Format(time.RFC3339))
}
