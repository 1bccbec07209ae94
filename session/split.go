package session

import "strings"

// SplitStatements splits a script on the semicolons that end statements. Semicolons inside
// quoted strings, quoted identifiers and comments are kept; comments are dropped and
// statements left empty are skipped. Trigger bodies (BEGIN ... END) are not supported.
func SplitStatements(script string) []string {
	stmts := []string{}
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == ';':
			flush()
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				i = len(script)
			} else {
				i += end - 1 // the newline itself is written on the next iteration
			}
			cur.WriteByte(' ')
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = len(script)
			} else {
				i += end + 3
			}
			cur.WriteByte(' ')
		case c == '\'' || c == '"' || c == '`' || c == '[':
			closing := c
			if c == '[' {
				closing = ']'
			}
			j := i + 1
			for j < len(script) {
				if script[j] == closing {
					// a doubled quote is an escaped quote
					if closing != ']' && j+1 < len(script) && script[j+1] == closing {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= len(script) {
				j = len(script) - 1
			}
			cur.WriteString(script[i : j+1])
			i = j
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	return stmts
}
