package uci

import (
	"errors"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/aretw0/opera/pkg/domain"
)

// ParserStats counts parser outcomes. Counters only grow.
type ParserStats struct {
	CommandsParsed      uint64
	ParseErrors         uint64
	SanitizationErrors  uint64
	ValidationErrors    uint64
	ZeroCopyHits        uint64
	AllocationFallbacks uint64
}

// Parser turns sanitized lines into typed commands. Apart from its
// counters it is stateless: equal input always yields an equal command.
type Parser struct {
	sanitizer *Sanitizer

	commandsParsed      atomic.Uint64
	parseErrors         atomic.Uint64
	sanitizationErrors  atomic.Uint64
	validationErrors    atomic.Uint64
	zeroCopyHits        atomic.Uint64
	allocationFallbacks atomic.Uint64
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLimits sets the input limits used by the parser's sanitizer.
func WithLimits(limits InputLimits) ParserOption {
	return func(p *Parser) {
		p.sanitizer = NewSanitizer(limits)
	}
}

// WithSanitizer shares an existing sanitizer.
func WithSanitizer(s *Sanitizer) ParserOption {
	return func(p *Parser) {
		if s != nil {
			p.sanitizer = s
		}
	}
}

// NewParser creates a parser with default limits unless overridden.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.sanitizer == nil {
		p.sanitizer = NewSanitizer(DefaultInputLimits())
	}
	return p
}

// Sanitizer returns the sanitizer the parser validates with.
func (p *Parser) Sanitizer() *Sanitizer {
	return p.sanitizer
}

// Stats returns a snapshot of the counters.
func (p *Parser) Stats() ParserStats {
	return ParserStats{
		CommandsParsed:      p.commandsParsed.Load(),
		ParseErrors:         p.parseErrors.Load(),
		SanitizationErrors:  p.sanitizationErrors.Load(),
		ValidationErrors:    p.validationErrors.Load(),
		ZeroCopyHits:        p.zeroCopyHits.Load(),
		AllocationFallbacks: p.allocationFallbacks.Load(),
	}
}

// Parse sanitizes, tokenizes and parses one line. Errors are *domain.Error
// values of kind Protocol, Position, Move or Resource.
func (p *Parser) Parse(line string) (Command, error) {
	clean, copied, err := p.sanitizer.sanitize(line)
	if err != nil {
		p.sanitizationErrors.Add(1)
		return nil, sanitizationError(err)
	}
	if err := p.sanitizer.ValidateCommandStructure(clean); err != nil {
		p.sanitizationErrors.Add(1)
		return nil, sanitizationError(err)
	}
	if err := p.sanitizer.CheckResourceExhaustion(clean); err != nil {
		p.sanitizationErrors.Add(1)
		return nil, sanitizationError(err)
	}

	raw, err := Tokenize(clean)
	if err != nil {
		p.parseErrors.Add(1)
		return nil, domain.Wrap(domain.KindProtocol, "parse", err)
	}

	st := parseState{parser: p, raw: raw, copied: copied}
	cmd, err := st.parse()
	if err != nil {
		p.parseErrors.Add(1)
		return nil, err
	}

	p.commandsParsed.Add(1)
	if st.copied {
		p.allocationFallbacks.Add(1)
	} else {
		p.zeroCopyHits.Add(1)
	}
	return cmd, nil
}

func sanitizationError(err error) error {
	if errors.Is(err, ErrResourceExhaustion) {
		e := domain.ResourceError("input", "%v", err)
		e.Op = "sanitize"
		e.Err = err
		return e
	}
	e := domain.ProtocolError("%v", err)
	e.Op = "sanitize"
	e.Err = err
	return e
}

type parseState struct {
	parser *Parser
	raw    RawCommand
	copied bool
}

func (s *parseState) parse() (Command, error) {
	name := s.raw.Name
	if hasUpper(name) {
		name = strings.ToLower(name)
	}

	switch name {
	case "uci":
		return s.noArgs(UCI{})
	case "isready":
		return s.noArgs(IsReady{})
	case "ucinewgame":
		return s.noArgs(UCINewGame{})
	case "stop":
		return s.noArgs(Stop{})
	case "ponderhit":
		return s.noArgs(PonderHit{})
	case "quit":
		return s.noArgs(Quit{})
	case "debug":
		return s.debug()
	case "setoption":
		return s.setOption()
	case "register":
		return s.register()
	case "position":
		return s.position()
	case "go":
		return s.goCommand()
	default:
		return nil, protocolf("Unknown command: '%s'", s.raw.Name)
	}
}

func protocolf(format string, args ...any) *domain.Error {
	e := domain.ProtocolError(format, args...)
	e.Op = "parse"
	return e
}

// validation converts a sanitizer failure into a typed domain error.
func (s *parseState) validation(kind domain.ErrorKind, err error) error {
	s.parser.validationErrors.Add(1)
	return domain.Wrap(kind, "parse", err)
}

func (s *parseState) noArgs(cmd Command) (Command, error) {
	if len(s.raw.Args) != 0 {
		return nil, protocolf("%s command takes no arguments", cmd.Keyword())
	}
	return cmd, nil
}

func (s *parseState) debug() (Command, error) {
	if len(s.raw.Args) != 1 {
		return nil, protocolf("debug command requires exactly one argument")
	}
	on, ok := parseBool(s.raw.Args[0])
	if !ok {
		return nil, protocolf("Invalid debug value: '%s'", s.raw.Args[0])
	}
	return Debug{On: on}, nil
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func (s *parseState) setOption() (Command, error) {
	args := s.raw.Args
	if len(args) == 0 || !strings.EqualFold(args[0], "name") {
		return nil, protocolf("setoption requires 'name' keyword")
	}

	valueAt := -1
	for i := 1; i < len(args); i++ {
		if strings.EqualFold(args[i], "value") {
			valueAt = i
			break
		}
	}

	opt := SetOption{}
	switch {
	case valueAt > 0:
		opt.Name = s.raw.Span(1, valueAt)
		opt.Value = s.raw.Span(valueAt+1, len(args))
		opt.HasValue = true
	case len(args) > 2 && looksLikeValue(args[len(args)-1]):
		// "setoption name Hash 64": pair the trailing scalar with the name.
		opt.Name = s.raw.Span(1, len(args)-1)
		opt.Value = args[len(args)-1]
		opt.HasValue = true
	default:
		opt.Name = s.raw.Span(1, len(args))
	}

	if opt.Name == "" {
		return nil, protocolf("setoption name missing")
	}
	if err := s.parser.sanitizer.ValidateOption(opt.Name, opt.Value); err != nil {
		return nil, s.validation(domain.KindProtocol, err)
	}
	return opt, nil
}

func looksLikeValue(tok string) bool {
	if _, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return true
	}
	_, ok := parseBool(tok)
	return ok
}

func (s *parseState) register() (Command, error) {
	args := s.raw.Args
	if len(args) == 0 {
		return nil, protocolf("register command requires arguments")
	}

	reg := Register{}
	for i := 0; i < len(args); {
		switch strings.ToLower(args[i]) {
		case "later":
			reg.Later = true
			i++
		case "name":
			end := i + 1
			for end < len(args) && !isRegisterKeyword(args[end]) {
				end++
			}
			if end == i+1 {
				return nil, protocolf("register name missing value")
			}
			reg.Name = s.raw.Span(i+1, end)
			i = end
		case "code":
			end := i + 1
			for end < len(args) && !isRegisterKeyword(args[end]) {
				end++
			}
			if end == i+1 {
				return nil, protocolf("register code missing value")
			}
			reg.Code = s.raw.Span(i+1, end)
			i = end
		default:
			return nil, protocolf("Invalid register parameter: '%s'", args[i])
		}
	}
	return reg, nil
}

func isRegisterKeyword(tok string) bool {
	switch strings.ToLower(tok) {
	case "later", "name", "code":
		return true
	}
	return false
}

func (s *parseState) position() (Command, error) {
	args := s.raw.Args
	if len(args) == 0 {
		return nil, protocolf("position command requires arguments")
	}

	var cmd Position
	next := 0
	switch strings.ToLower(args[0]) {
	case "startpos":
		cmd.Spec.StartPos = true
		next = 1
	case "fen":
		fields := 0
		for fields < 6 && 1+fields < len(args) && !strings.EqualFold(args[1+fields], "moves") {
			fields++
		}
		if fields != 6 {
			s.parser.validationErrors.Add(1)
			e := domain.PositionError("FEN requires 6 fields, got %d", fields)
			e.Op = "parse"
			return nil, e
		}
		fen := s.raw.Span(1, 7)
		if err := s.parser.sanitizer.ValidateFEN(fen); err != nil {
			return nil, s.validation(domain.KindPosition, err)
		}
		cmd.Spec.FEN = fen
		next = 7
	default:
		return nil, protocolf("Invalid position type: '%s'", args[0])
	}

	if next == len(args) {
		return cmd, nil
	}
	if !strings.EqualFold(args[next], "moves") {
		return nil, protocolf("Unexpected token in position command: '%s'", args[next])
	}

	moves := args[next+1:]
	if err := s.parser.sanitizer.ValidateMoveList(moves); err != nil {
		return nil, s.validation(domain.KindMove, err)
	}
	cmd.Moves = make([]Move, 0, len(moves))
	for _, tok := range moves {
		m, err := ParseMove(tok)
		if err != nil {
			return nil, s.validation(domain.KindMove, err)
		}
		if hasUpper(tok) {
			s.copied = true
		}
		cmd.Moves = append(cmd.Moves, m)
	}
	return cmd, nil
}

func (s *parseState) goCommand() (Command, error) {
	args := s.raw.Args
	var params GoParams

	for i := 0; i < len(args); {
		key := strings.ToLower(args[i])
		if target := numericGoField(&params, key); target != nil {
			if i+1 >= len(args) {
				return nil, protocolf("go %s parameter missing value", key)
			}
			v, err := strconv.ParseUint(args[i+1], 10, 64)
			if err != nil {
				return nil, protocolf("Invalid %s number: '%s'", key, args[i+1])
			}
			*target = &v
			i += 2
			continue
		}

		switch key {
		case "infinite":
			params.Infinite = true
			i++
		case "ponder":
			params.Ponder = true
			i++
		case "searchmoves":
			i++
			for i < len(args) && !isGoKeyword(args[i]) {
				m, err := ParseMove(args[i])
				if err != nil {
					return nil, s.validation(domain.KindMove, err)
				}
				params.SearchMoves = append(params.SearchMoves, m)
				i++
			}
		default:
			return nil, protocolf("Invalid go parameter: '%s'", args[i])
		}
	}
	return Go{Params: params}, nil
}

// numericGoField returns the slot for a numeric go keyword, or nil.
func numericGoField(p *GoParams, key string) **uint64 {
	switch key {
	case "wtime":
		return &p.WTime
	case "btime":
		return &p.BTime
	case "winc":
		return &p.WInc
	case "binc":
		return &p.BInc
	case "movestogo":
		return &p.MovesToGo
	case "depth":
		return &p.Depth
	case "nodes":
		return &p.Nodes
	case "mate":
		return &p.Mate
	case "movetime":
		return &p.MoveTime
	}
	return nil
}

func isGoKeyword(tok string) bool {
	var scratch GoParams
	key := strings.ToLower(tok)
	if numericGoField(&scratch, key) != nil {
		return true
	}
	switch key {
	case "infinite", "ponder", "searchmoves":
		return true
	}
	return false
}
