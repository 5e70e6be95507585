package token

import (
	"path/filepath"
	"strings"
)

// Dialect identifies the surface syntax of a source file.
type Dialect uint8

const (
	DialectUnknown Dialect = iota
	DialectThrift
	DialectProto
)

func (d Dialect) String() string {
	switch d {
	case DialectThrift:
		return "thrift"
	case DialectProto:
		return "proto"
	default:
		return "unknown"
	}
}

// DialectFromPath picks the dialect by file extension.
func DialectFromPath(path string) Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".thrift":
		return DialectThrift
	case ".proto":
		return DialectProto
	default:
		return DialectUnknown
	}
}

var thriftKeywords = map[string]Kind{
	"include":     KwInclude,
	"cpp_include": KwCppInclude,
	"namespace":   KwNamespace,
	"typedef":     KwTypedef,
	"const":       KwConst,
	"enum":        KwEnum,
	"struct":      KwStruct,
	"union":       KwUnion,
	"exception":   KwException,
	"service":     KwService,
	"extends":     KwExtends,
	"required":    KwRequired,
	"optional":    KwOptional,
	"oneway":      KwOneway,
	"void":        KwVoid,
	"throws":      KwThrows,
	"true":        KwTrue,
	"false":       KwFalse,
	"list":        KwList,
	"set":         KwSet,
	"map":         KwMap,
}

var protoKeywords = map[string]Kind{
	"syntax":     KwSyntax,
	"package":    KwPackage,
	"import":     KwImport,
	"public":     KwPublic,
	"weak":       KwWeak,
	"option":     KwOption,
	"message":    KwMessage,
	"enum":       KwEnum,
	"service":    KwService,
	"rpc":        KwRPC,
	"returns":    KwReturns,
	"stream":     KwStream,
	"required":   KwRequired,
	"optional":   KwOptional,
	"repeated":   KwRepeated,
	"oneof":      KwOneof,
	"map":        KwMap,
	"reserved":   KwReserved,
	"extensions": KwExtensions,
	"extend":     KwExtend,
	"to":         KwTo,
	"max":        KwMax,
	"true":       KwTrue,
	"false":      KwFalse,
}

// LookupKeyword возвращает тип и bool если это ключевое слово диалекта.
// Ключевые слова регистрозависимые.
func LookupKeyword(d Dialect, ident string) (Kind, bool) {
	var k Kind
	var ok bool
	switch d {
	case DialectThrift:
		k, ok = thriftKeywords[ident]
	case DialectProto:
		k, ok = protoKeywords[ident]
	}
	return k, ok
}
