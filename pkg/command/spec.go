package command

// MaxArguments is the fixed capacity of a command's argument specification.
// A command can never accept more than MaxArguments-1 arguments.
const MaxArguments = 14

// ArgFlags is a bitmask of the value types accepted at an argument position.
// The zero value (ArgAny) accepts anything.
type ArgFlags uint8

const (
	// ArgAny accepts any value type.
	ArgAny ArgFlags = 0
	// ArgInteger accepts whole base-10 numbers.
	ArgInteger ArgFlags = 1 << iota
	// ArgFloat accepts floating point numbers.
	ArgFloat
	// ArgBoolean accepts true/on and false/off.
	ArgBoolean
	// ArgString accepts any text.
	ArgString
	// ArgLower forces extracted strings to lowercase.
	ArgLower
	// ArgUpper forces extracted strings to uppercase.
	ArgUpper
	// ArgGreedy consumes all remaining text as a single string argument.
	// Mutually exclusive with every other flag.
	ArgGreedy
)

// String names the dominant type in the flag set, mirroring how arguments are
// described to script authors.
func (f ArgFlags) String() string {
	switch {
	case f == ArgAny:
		return "any"
	case f&ArgInteger != 0:
		return "integer"
	case f&ArgFloat != 0:
		return "float"
	case f&ArgBoolean != 0:
		return "boolean"
	case f&(ArgString|ArgLower|ArgUpper|ArgGreedy) != 0:
		return "string"
	default:
		return "unknown"
	}
}

// compileSpec parses the compact per-position type grammar into a full flag
// table. Positions are separated by '|'; within a position, letter codes may
// be concatenated or comma separated: i=integer, f=float, b=boolean, s=string,
// l=lowercase string, u=uppercase string, g=greedy. The compiler is
// all-or-nothing: on any error the caller must leave every position at ArgAny.
func compileSpec(name, spec string) ([MaxArguments]ArgFlags, error) {
	var out [MaxArguments]ArgFlags

	idx := 0
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		switch {
		case c == '|':
			idx++
			if idx >= MaxArguments {
				return out, regErrorf(ErrUnknownTypeSpecifier, name,
					"extraneous type specifiers: %d >= %d", idx, MaxArguments)
			}
		case c == ',':
			// separator within a position
		case !isAlpha(c):
			// stray punctuation and whitespace are ignored
		default:
			switch c {
			case 'g':
				out[idx] = ArgGreedy
			case 'i':
				out[idx] = out[idx]&^ArgGreedy | ArgInteger
			case 'f':
				out[idx] = out[idx]&^ArgGreedy | ArgFloat
			case 'b':
				out[idx] = out[idx]&^ArgGreedy | ArgBoolean
			case 's':
				out[idx] = out[idx]&^ArgGreedy | ArgString
			case 'l':
				out[idx] = out[idx]&^ArgGreedy | ArgString | ArgLower
			case 'u':
				out[idx] = out[idx]&^ArgGreedy | ArgString | ArgUpper
			default:
				return out, regErrorf(ErrUnknownTypeSpecifier, name,
					"unknown type specifier (%c) at argument %d", c, idx)
			}
		}
	}
	return out, nil
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
