package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"idlc/internal/token"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB — ограничение для тестового корпуса
	maxFuzzInput = 1 << 16
)

var thriftSeeds = []string{
	``,
	`struct A { 1: required i32 x = 5, 2: optional list<map<string, B>> m }`,
	`include "shared.thrift"
namespace go shop.api
typedef i64 UserID
const map<string, i32> M = {"a": 1, "b": 2}
enum Color { RED, GREEN = 5, BLUE }
exception NotFound { 1: string msg }
union U { 1: i32 a; 2: string b }
service Api extends shared.Base {
  oneway void ping(),
  User get(1: UserID id) throws (1: NotFound nf)
}`,
	`struct S { 1: i32 a (go.tag = "json:\"a\"") } (final = "true")`,
	`const list<double> L = [1.5, -2e10, 0x1F]`,
	`struct { 1: }`,
	`service S { void f(1: i32 a`,
	`/* unterminated`,
}

var protoSeeds = []string{
	``,
	`syntax = "proto3";`,
	`syntax = "proto3";
package shop.v1;
import public "google/protobuf/empty.proto";
option go_package = "example.com/shop;shop";
message User {
  int64 id = 1;
  repeated string tags = 2 [packed = true];
  map<string, Address> addrs = 3;
  oneof contact { string email = 4; string phone = 5; }
  message Address { string city = 1; }
  reserved 6 to 10, 15 to max;
  reserved "old";
}
enum Kind { KIND_UNSPECIFIED = 0; KIND_A = 1; }
service Users { rpc Watch(stream User) returns (stream User) { option deprecated = true; } }`,
	`syntax = "proto2"; message M { required int32 a = 1 [default = 7]; extensions 100 to 199; }
extend M { optional string note = 100; }`,
	`message M { int32 a = ; }`,
	`message M { oneof o { } `,
	`syntax = 'proto4';`,
}

func addCorpusSeeds(f *testing.F, d token.Dialect) {
	seeds := thriftSeeds
	if d == token.DialectProto {
		seeds = protoSeeds
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}
	addTestdataSeeds(f, d)
}

func addTestdataSeeds(f *testing.F, d token.Dialect) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	// проходим по дереву testdata, добавляем файлы нужного диалекта
	_ = filepath.WalkDir(root, func(path string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil || e.IsDir() {
			return nil
		}
		if token.DialectFromPath(path) != d {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		return append([]byte(nil), input[:maxFuzzInput]...)
	}
	return append([]byte(nil), input...)
}
