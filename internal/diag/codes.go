package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Лексические
	LexInfo                     Code = 1000
	LexUnknownChar              Code = 1001
	LexUnterminatedString       Code = 1002
	LexUnterminatedBlockComment Code = 1003
	LexBadNumber                Code = 1004
	LexBadEscape                Code = 1005

	// Синтаксические
	SynInfo               Code = 2000
	SynUnexpectedToken    Code = 2001
	SynUnclosedDelimiter  Code = 2002
	SynExpectSemicolon    Code = 2003
	SynExpectIdentifier   Code = 2004
	SynExpectType         Code = 2005
	SynExpectFieldID      Code = 2006
	SynExpectConstValue   Code = 2007
	SynExpectString       Code = 2008
	SynUnexpectedTopLevel Code = 2009
	SynBadSyntaxVersion   Code = 2010
	SynDuplicatePackage   Code = 2011
	SynExpectEquals       Code = 2012
	SynBadFieldNumber     Code = 2013
	SynUnsupported        Code = 2014
	SynMisplacedSyntax    Code = 2015

	// Семантические
	SemaInfo                Code = 3000
	SemaError               Code = 3001
	SemaDuplicateDefinition Code = 3002
	SemaUnresolvedReference Code = 3005
	SemaNotAType            Code = 3006
	SemaNotAValue           Code = 3007
	SemaAmbiguousReference  Code = 3010
	SemaImplicitFieldID     Code = 3011
	SemaRequiredInProto3    Code = 3012
	SemaProto3EnumZero      Code = 3013
	SemaReservedField       Code = 3014
	SemaFieldIDRange        Code = 3015
	SemaInvalidMapKey       Code = 3016
	SemaExtendsNotService   Code = 3017
	SemaBadOneway           Code = 3018
	SemaThrowsNotException  Code = 3019
	SemaDuplicateFieldID    Code = 3020
	SemaDuplicateEnumValue  Code = 3021
	SemaDuplicateFieldName  Code = 3022
	SemaEnumValueAlias      Code = 3023
	SemaRequiredInUnion     Code = 3024
	SemaUnknownRoot         Code = 3025
	SemaInvalidDefault      Code = 3030
	SemaTypedefCycle        Code = 3040
	SemaExtendsCycle        Code = 3041
	SemaInvalidCycle        Code = 3126

	// Ввод-вывод
	IOInfo          Code = 4000
	IOLoadFileError Code = 4001
	IOMissingImport Code = 4002
	IOWriteError    Code = 4003

	// Проект
	ProjInfo             Code = 5000
	ProjInvalidManifest  Code = 5001
	ProjNoEntries        Code = 5002
	ProjDependencyFailed Code = 5003
	ProjImportCycle      Code = 5004
	ProjDuplicateModule  Code = 5005
	ProjSelfImport       Code = 5006

	// Кодогенерация
	GenInfo            Code = 6000
	GenUnknownTarget   Code = 6001
	GenBackendFailed   Code = 6002
	GenOutputConflict  Code = 6003
	GenUnsupportedType Code = 6004

	// Внутренние ошибки компилятора
	ICEInfo          Code = 9000
	ICEQueryPoisoned Code = 9001
	ICEArenaIndex    Code = 9002
	ICEInvariant     Code = 9003
)

var codeDescription = map[Code]string{
	UnknownCode:                 "Unknown error",
	LexInfo:                     "Lexical information",
	LexUnknownChar:              "Unknown character",
	LexUnterminatedString:       "Unterminated string",
	LexUnterminatedBlockComment: "Unterminated block comment",
	LexBadNumber:                "Bad number",
	LexBadEscape:                "Bad escape sequence",
	SynInfo:                     "Syntax information",
	SynUnexpectedToken:          "Unexpected token",
	SynUnclosedDelimiter:        "Unclosed delimiter",
	SynExpectSemicolon:          "Expected semicolon",
	SynExpectIdentifier:         "Expected identifier",
	SynExpectType:               "Expected type",
	SynExpectFieldID:            "Expected field id",
	SynExpectConstValue:         "Expected constant value",
	SynExpectString:             "Expected string literal",
	SynUnexpectedTopLevel:       "Unexpected top-level item",
	SynBadSyntaxVersion:         "Unknown syntax version",
	SynDuplicatePackage:         "Duplicate package declaration",
	SynExpectEquals:             "Expected '='",
	SynBadFieldNumber:           "Bad field number",
	SynUnsupported:              "Unsupported construct",
	SynMisplacedSyntax:          "Syntax statement must come first",
	SemaInfo:                    "Semantic information",
	SemaError:                   "Semantic error",
	SemaDuplicateDefinition:     "Duplicate definition",
	SemaUnresolvedReference:     "Unresolved reference",
	SemaNotAType:                "Reference is not a type",
	SemaNotAValue:               "Reference is not a value",
	SemaAmbiguousReference:      "Ambiguous reference",
	SemaImplicitFieldID:         "Implicit field id",
	SemaRequiredInProto3:        "required is not allowed in proto3",
	SemaProto3EnumZero:          "First proto3 enum value must be zero",
	SemaReservedField:           "Use of reserved field",
	SemaFieldIDRange:            "Field id out of range",
	SemaInvalidMapKey:           "Invalid map key type",
	SemaExtendsNotService:       "Service extends a non-service",
	SemaBadOneway:               "Invalid oneway method",
	SemaThrowsNotException:      "Thrown type is not an exception",
	SemaDuplicateFieldID:        "Duplicate field id",
	SemaDuplicateEnumValue:      "Duplicate enum value",
	SemaDuplicateFieldName:      "Duplicate field name",
	SemaEnumValueAlias:          "Enum value alias without allow_alias",
	SemaRequiredInUnion:         "Required field in union",
	SemaUnknownRoot:             "Unknown root declaration",
	SemaInvalidDefault:          "Invalid default value",
	SemaTypedefCycle:            "Typedef cycle",
	SemaExtendsCycle:            "Service extends cycle",
	SemaInvalidCycle:            "Value type contains itself",
	IOInfo:                      "I/O information",
	IOLoadFileError:             "I/O load file error",
	IOMissingImport:             "Missing import",
	IOWriteError:                "I/O write error",
	ProjInfo:                    "Project information",
	ProjInvalidManifest:         "Invalid manifest",
	ProjNoEntries:               "No entry files",
	ProjDependencyFailed:        "Dependency module has errors",
	ProjImportCycle:             "Import cycle",
	ProjDuplicateModule:         "Duplicate module",
	ProjSelfImport:              "Module imports itself",
	GenInfo:                     "Code generation information",
	GenUnknownTarget:            "Unknown generator target",
	GenBackendFailed:            "Generator backend failed",
	GenOutputConflict:           "Output path conflict",
	GenUnsupportedType:          "Unsupported type for target",
	ICEInfo:                     "Internal information",
	ICEQueryPoisoned:            "Internal error: query failed",
	ICEArenaIndex:               "Internal error: arena index out of range",
	ICEInvariant:                "Internal error: invariant violated",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("GEN%04d", ic)
	case ic >= 9000 && ic < 10000:
		return fmt.Sprintf("ICE%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

// Internal reports whether the code belongs to the compiler-bug family.
func (c Code) Internal() bool {
	return c >= 9000 && c < 10000
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
