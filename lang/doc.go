// Package lang implements the Catapillar language: a small, embeddable
// scripting language with a hand-written front end and a tree-walking
// evaluator.
//
// # Pipeline
//
// A [Source] is split into tokens by a [Lexer], assembled into a [Program]
// by a [Parser], and executed by an [Interpreter] against an [Environment]
// and a [Registry] of host-provided native functions:
//
//	src := lang.NewSource("main.cat", text)
//	prog, diags := lang.Parse(src)
//	if len(diags) > 0 {
//		return diags
//	}
//	v, err := lang.Evaluate(ctx, prog, lang.NewEnvironment(nil))
//
// The package performs no I/O and never prints; every problem is returned
// as a [*Diagnostic] carrying its category, message, and source position.
//
// # Grammar
//
// Informal EBNF:
//
//	program   → stmt* EOF
//	stmt      → let | funcdef | return | break | continue | if | while | for
//	          | block | expr term | ';'
//	let       → 'let' IDENT ( '=' expr )? term
//	funcdef   → 'function' IDENT '(' params? ')' block
//	if        → 'if' expr block ( 'elif' expr block )* ( 'else' ( if | block ) )?
//	while     → 'while' expr block
//	for       → 'for' IDENT 'in' expr block
//	block     → '{' stmt* '}'
//	term      → ';'   (optional before '}' or end of input)
//	expr      → IDENT '=' expr | binary
//	binary    → unary ( OP binary )*
//	unary     → ( '-' | 'not' | '!' ) unary | postfix
//	postfix   → primary ( '(' args? ')' | '[' expr ']' )*
//	primary   → NUMBER | STRING | 'true' | 'false' | 'null' | IDENT
//	          | '(' expr ')' | '[' list ']' | '{' map '}'
//	          | 'function' '(' params? ')' block
//
// Binary operators are resolved by precedence climbing over an
// [OperatorTable], so a host can add operators or change precedence and
// associativity without touching the parser.
//
// # Keywords
//
// Every keyword has an English spelling and most have a Chinese alias:
//
//	let set 置   function fn def 定   return 回   if 若   elif 又若
//	else 否则   while 当   for 扭扭   break 断   continue 续   true 真
//	false 假   and 且   or 或   call 调   pass 空
//
// "pass" is an empty statement and "call f(x)" is a call statement. The
// arithmetic operators have word spellings (add 加, sub 减, mul 乘, div 除)
// and a block may close with end, 结束, 完了 or 终 in place of "}".
//
// Hosts may add spellings with [Lexicon.Alias].
//
// # Example
//
//	function fib(n) {
//	    if n < 2 { return n; }
//	    return fib(n - 1) + fib(n - 2);
//	}
//
//	let total = 0;
//	for x in [1, 2, 3] {
//	    total = total + fib(x);
//	}
//	total;
package lang
