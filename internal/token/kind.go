package token

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF

	Ident
	IntLit
	FloatLit
	StringLit

	LBrace    // {
	RBrace    // }
	LParen    // (
	RParen    // )
	LBracket  // [
	RBracket  // ]
	Lt        // <
	Gt        // >
	Comma     // ,
	Semicolon // ;
	Colon     // :
	Assign    // =
	Dot       // .
	Minus     // -
	Plus      // +
	Star      // *

	kwBegin
	KwInclude
	KwCppInclude
	KwNamespace
	KwTypedef
	KwConst
	KwEnum
	KwStruct
	KwUnion
	KwException
	KwService
	KwExtends
	KwRequired
	KwOptional
	KwOneway
	KwVoid
	KwThrows
	KwTrue
	KwFalse
	KwList
	KwSet
	KwMap
	KwSyntax
	KwPackage
	KwImport
	KwPublic
	KwWeak
	KwOption
	KwMessage
	KwRPC
	KwReturns
	KwStream
	KwRepeated
	KwOneof
	KwReserved
	KwExtensions
	KwExtend
	KwTo
	KwMax
	kwEnd
)

var kindNames = [...]string{
	Invalid:      "invalid",
	EOF:          "end of file",
	Ident:        "identifier",
	IntLit:       "integer literal",
	FloatLit:     "float literal",
	StringLit:    "string literal",
	LBrace:       "'{'",
	RBrace:       "'}'",
	LParen:       "'('",
	RParen:       "')'",
	LBracket:     "'['",
	RBracket:     "']'",
	Lt:           "'<'",
	Gt:           "'>'",
	Comma:        "','",
	Semicolon:    "';'",
	Colon:        "':'",
	Assign:       "'='",
	Dot:          "'.'",
	Minus:        "'-'",
	Plus:         "'+'",
	Star:         "'*'",
	kwBegin:      "",
	KwInclude:    "'include'",
	KwCppInclude: "'cpp_include'",
	KwNamespace:  "'namespace'",
	KwTypedef:    "'typedef'",
	KwConst:      "'const'",
	KwEnum:       "'enum'",
	KwStruct:     "'struct'",
	KwUnion:      "'union'",
	KwException:  "'exception'",
	KwService:    "'service'",
	KwExtends:    "'extends'",
	KwRequired:   "'required'",
	KwOptional:   "'optional'",
	KwOneway:     "'oneway'",
	KwVoid:       "'void'",
	KwThrows:     "'throws'",
	KwTrue:       "'true'",
	KwFalse:      "'false'",
	KwList:       "'list'",
	KwSet:        "'set'",
	KwMap:        "'map'",
	KwSyntax:     "'syntax'",
	KwPackage:    "'package'",
	KwImport:     "'import'",
	KwPublic:     "'public'",
	KwWeak:       "'weak'",
	KwOption:     "'option'",
	KwMessage:    "'message'",
	KwRPC:        "'rpc'",
	KwReturns:    "'returns'",
	KwStream:     "'stream'",
	KwRepeated:   "'repeated'",
	KwOneof:      "'oneof'",
	KwReserved:   "'reserved'",
	KwExtensions: "'extensions'",
	KwExtend:     "'extend'",
	KwTo:         "'to'",
	KwMax:        "'max'",
	kwEnd:        "",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// IsKeyword reports whether k is a keyword of either dialect.
func (k Kind) IsKeyword() bool {
	return k > kwBegin && k < kwEnd
}
