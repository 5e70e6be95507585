// Package fuzztests houses Go fuzz harnesses for the front end of idlc
// (source -> lexer -> parser -> lower). Their goal is to guard against
// panics, hangs and broken spans on arbitrary Thrift and Protobuf input.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
package fuzztests
