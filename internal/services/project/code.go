package project

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NextCode derives the next organization-scoped project code. The prefix is
// the first three letters of the organization name, the number continues the
// sequence of the most recently created project ("ACM-007" -> "ACM-008").
func NextCode(orgName, lastCode string) string {
	prefix := codePrefix(orgName)

	number := 1
	if len(lastCode) >= 3 {
		if n, err := strconv.Atoi(lastCode[len(lastCode)-3:]); err == nil {
			number = n + 1
		}
	}

	return fmt.Sprintf("%s-%03d", prefix, number)
}

func codePrefix(orgName string) string {
	var b strings.Builder
	taken := 0
	for _, r := range orgName {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			if taken++; taken >= 3 {
				break
			}
		}
	}

	if taken == 0 {
		return "PRJ"
	}

	return b.String()
}
