// Package sqlselect parses SQL SELECT statements into a mutable statement
// tree. The grammar deliberately covers only the SELECT shape the migration
// understands; anything else is a parse error, which callers treat as a
// recoverable signal to fall back to text-level rewriting.
package sqlselect

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var sqlLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "Comment", Pattern: `--[^\n]*`},
		{Name: "BlockComment", Pattern: `/\*[\s\S]*?\*/`},
		{Name: "String", Pattern: `'(?:[^']|'')*'`},
		{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]+)?`},
		// Reserved words lex as their own token class so they can never be
		// captured as table or column aliases.
		{Name: "Keyword", Pattern: `(?i)(?:SELECT|DISTINCT|ALL|FROM|WHERE|GROUP|BY|HAVING|ORDER|LIMIT|OFFSET|UNION|JOIN|INNER|LEFT|RIGHT|FULL|OUTER|CROSS|ON|ASC|AS|AND|OR|NOT|IN|BETWEEN|LIKE|IS|NULL|DESC)\b`},
		{Name: "Ident", Pattern: "[a-zA-Z_][a-zA-Z0-9_]*|`[^`]*`|\"[^\"]*\""},
		{Name: "Operator", Pattern: `<>|!=|<=|>=|\|\||[-+*/%=<>]`},
		{Name: "Punct", Pattern: `[(),.;?]`},
	},
})

// Statement is a single SELECT, possibly a UNION chain of plain selects.
type Statement struct {
	First *PlainSelect   `@@`
	Rest  []*SetOpBranch `@@* ";"?`
}

// SetOpBranch is one UNION [ALL] arm of a compound select.
type SetOpBranch struct {
	All    bool         `"UNION" @"ALL"?`
	Select *PlainSelect `@@`
}

// PlainSelect is one SELECT core with its clauses.
type PlainSelect struct {
	Distinct bool          `"SELECT" ( @"DISTINCT" | "ALL" )?`
	Items    []*SelectItem `@@ ( "," @@ )*`
	From     []*TableRef   `( "FROM" @@ ( "," @@ )* )?`
	Joins    []*Join       `@@*`
	Where    *Expression   `( "WHERE" @@ )?`
	GroupBy  []*Expression `( "GROUP" "BY" @@ ( "," @@ )* )?`
	Having   *Expression   `( "HAVING" @@ )?`
	OrderBy  []*OrderItem  `( "ORDER" "BY" @@ ( "," @@ )* )?`
	Limit    *LimitClause  `@@?`
}

// SelectItem is one projection in the select list.
type SelectItem struct {
	Star   bool        `( @"*"`
	StarOf string      `| @Ident "." "*"`
	Expr   *Expression `| @@`
	Alias  string      `( "AS"? @Ident )? )`
}

// TableRef is a FROM or JOIN item: a plain table or a parenthesized subquery,
// optionally aliased.
type TableRef struct {
	Sub   *Statement `( "(" @@ ")"`
	Name  string     `| @Ident )`
	Alias string     `( "AS"? @Ident )?`
}

// Join is one JOIN clause with its right-hand item and optional predicate.
type Join struct {
	Kind  []string    `@("INNER" | "LEFT" | "RIGHT" | "FULL" | "CROSS" | "OUTER")* "JOIN"`
	Right *TableRef   `@@`
	On    *Expression `( "ON" @@ )?`
}

// OrderItem is one ORDER BY element.
type OrderItem struct {
	Expr *Expression `@@`
	Dir  string      `@("ASC" | "DESC")?`
}

// LimitClause is LIMIT with an optional OFFSET.
type LimitClause struct {
	Count  string  `"LIMIT" @Number`
	Offset *string `( "OFFSET" @Number )?`
}

// Expression is a disjunction of AND-chains.
type Expression struct {
	Left *AndCond   `@@`
	Or   []*AndCond `( "OR" @@ )*`
}

// AndCond is a conjunction of conditions.
type AndCond struct {
	Left *Condition   `@@`
	And  []*Condition `( "AND" @@ )*`
}

// Condition is an optionally negated predicate.
type Condition struct {
	Not     *Condition `"NOT" @@`
	Operand *Predicate `| @@`
}

// Predicate is an operand with an optional comparison tail.
type Predicate struct {
	Left    *Operand     `@@`
	Between *BetweenTail `( @@`
	In      *InTail      `| @@`
	Like    *LikeTail    `| @@`
	Is      *IsTail      `| @@`
	Compare *CompareTail `| @@ )?`
}

// BetweenTail is [NOT] BETWEEN low AND high.
type BetweenTail struct {
	Not  bool     `@"NOT"? "BETWEEN"`
	Low  *Operand `@@ "AND"`
	High *Operand `@@`
}

// InTail is [NOT] IN (subquery | expression list).
type InTail struct {
	Not  bool          `@"NOT"? "IN" "("`
	Sub  *Statement    `( @@`
	List []*Expression `| @@ ( "," @@ )* ) ")"`
}

// LikeTail is [NOT] LIKE pattern.
type LikeTail struct {
	Not     bool     `@"NOT"? "LIKE"`
	Pattern *Operand `@@`
}

// IsTail is IS [NOT] NULL.
type IsTail struct {
	Not  bool `"IS" @"NOT"?`
	Null bool `@"NULL"`
}

// CompareTail is a binary comparison operator and right operand.
type CompareTail struct {
	Op    string   `@("=" | "<>" | "!=" | "<=" | ">=" | "<" | ">")`
	Right *Operand `@@`
}

// Operand is a flat arithmetic/concatenation chain of terms.
type Operand struct {
	Left *Term     `@@`
	Ops  []*OpTerm `@@*`
}

// OpTerm is one operator-term pair in an operand chain.
type OpTerm struct {
	Op   string `@("+" | "-" | "*" | "/" | "%" | "||")`
	Term *Term  `@@`
}

// Term is a primary expression.
type Term struct {
	Sign   string      `@("-" | "+")?`
	Func   *FuncCall   `( @@`
	Column *ColumnRef  `| @@`
	Number *string     `| @Number`
	Str    *string     `| @String`
	Null   bool        `| @"NULL"`
	Param  bool        `| @"?"`
	Paren  *ParenGroup `| @@ )`
}

// FuncCall is a function invocation, including COUNT(*) and DISTINCT args.
type FuncCall struct {
	Name     string        `@Ident "("`
	Star     bool          `( @"*"`
	Distinct bool          `| @"DISTINCT"?`
	Args     []*Expression `@@ ( "," @@ )* )? ")"`
}

// ColumnRef is a possibly qualified column reference. Qualifier is the table
// name or alias exactly as written; rewrites mutate these fields in place.
type ColumnRef struct {
	Qualifier string `( @Ident "." )?`
	Name      string `@Ident`
}

// ParenGroup is a parenthesized subquery or expression list.
type ParenGroup struct {
	Sub  *Statement    `"(" ( @@`
	List []*Expression `| @@ ( "," @@ )* ) ")"`
}

var parser = participle.MustBuild[Statement](
	participle.Lexer(sqlLexer),
	participle.CaseInsensitive("Keyword"),
	participle.Elide("Whitespace", "Comment", "BlockComment"),
	participle.UseLookahead(4),
)

// Parse parses sql into a statement tree.
func Parse(sql string) (*Statement, error) {
	stmt, err := parser.ParseString("", sql)
	if err != nil {
		return nil, fmt.Errorf("parse select: %w", err)
	}
	return stmt, nil
}

// Selects returns every plain SELECT in the statement, in source order.
func (s *Statement) Selects() []*PlainSelect {
	if s == nil {
		return nil
	}
	out := make([]*PlainSelect, 0, 1+len(s.Rest))
	if s.First != nil {
		out = append(out, s.First)
	}
	for _, branch := range s.Rest {
		if branch.Select != nil {
			out = append(out, branch.Select)
		}
	}
	return out
}

// Unquote strips backtick or double-quote delimiters from an identifier.
func Unquote(ident string) string {
	if len(ident) >= 2 {
		if (ident[0] == '`' && ident[len(ident)-1] == '`') ||
			(ident[0] == '"' && ident[len(ident)-1] == '"') {
			return ident[1 : len(ident)-1]
		}
	}
	return ident
}

// Expressions returns the clause expressions of sel that participate in
// column analysis: the select list, WHERE, GROUP BY and ORDER BY. JOIN ON
// predicates are deliberately excluded; callers walk those separately.
func (sel *PlainSelect) Expressions() []*Expression {
	var out []*Expression
	for _, item := range sel.Items {
		if item.Expr != nil {
			out = append(out, item.Expr)
		}
	}
	if sel.Where != nil {
		out = append(out, sel.Where)
	}
	out = append(out, sel.GroupBy...)
	for _, ord := range sel.OrderBy {
		if ord.Expr != nil {
			out = append(out, ord.Expr)
		}
	}
	return out
}

// WalkColumns visits every column reference reachable from e without crossing
// into nested subqueries or IN-list members. Subqueries carry their own alias
// scope; use Subqueries to recurse into them explicitly.
func WalkColumns(e *Expression, fn func(*ColumnRef)) {
	walkExpression(e, fn, nil)
}

// Subqueries returns the nested SELECT statements directly under e.
func Subqueries(e *Expression) []*Statement {
	var subs []*Statement
	walkExpression(e, nil, func(s *Statement) {
		subs = append(subs, s)
	})
	return subs
}

func walkExpression(e *Expression, fn func(*ColumnRef), sub func(*Statement)) {
	if e == nil {
		return
	}
	walkAnd(e.Left, fn, sub)
	for _, a := range e.Or {
		walkAnd(a, fn, sub)
	}
}

func walkAnd(a *AndCond, fn func(*ColumnRef), sub func(*Statement)) {
	if a == nil {
		return
	}
	walkCondition(a.Left, fn, sub)
	for _, c := range a.And {
		walkCondition(c, fn, sub)
	}
}

func walkCondition(c *Condition, fn func(*ColumnRef), sub func(*Statement)) {
	if c == nil {
		return
	}
	if c.Not != nil {
		walkCondition(c.Not, fn, sub)
		return
	}
	walkPredicate(c.Operand, fn, sub)
}

func walkPredicate(p *Predicate, fn func(*ColumnRef), sub func(*Statement)) {
	if p == nil {
		return
	}
	walkOperand(p.Left, fn, sub)
	switch {
	case p.Between != nil:
		walkOperand(p.Between.Low, fn, sub)
		walkOperand(p.Between.High, fn, sub)
	case p.In != nil:
		// Only the left operand of IN is walked; list members are opaque to
		// column analysis. Subqueries still surface through sub.
		if p.In.Sub != nil && sub != nil {
			sub(p.In.Sub)
		}
	case p.Like != nil:
		walkOperand(p.Like.Pattern, fn, sub)
	case p.Compare != nil:
		walkOperand(p.Compare.Right, fn, sub)
	}
}

func walkOperand(o *Operand, fn func(*ColumnRef), sub func(*Statement)) {
	if o == nil {
		return
	}
	walkTerm(o.Left, fn, sub)
	for _, op := range o.Ops {
		walkTerm(op.Term, fn, sub)
	}
}

func walkTerm(t *Term, fn func(*ColumnRef), sub func(*Statement)) {
	if t == nil {
		return
	}
	switch {
	case t.Column != nil:
		if fn != nil {
			fn(t.Column)
		}
	case t.Func != nil:
		for _, arg := range t.Func.Args {
			walkExpression(arg, fn, sub)
		}
	case t.Paren != nil:
		if t.Paren.Sub != nil && sub != nil {
			sub(t.Paren.Sub)
		}
		for _, le := range t.Paren.List {
			walkExpression(le, fn, sub)
		}
	}
}

// IsKeyword reports whether ident is a reserved word of the grammar.
func IsKeyword(ident string) bool {
	_, ok := keywords[strings.ToUpper(ident)]
	return ok
}

var keywords = map[string]struct{}{
	"SELECT": {}, "DISTINCT": {}, "ALL": {}, "FROM": {}, "WHERE": {},
	"GROUP": {}, "BY": {}, "HAVING": {}, "ORDER": {}, "LIMIT": {},
	"OFFSET": {}, "UNION": {}, "JOIN": {}, "INNER": {}, "LEFT": {},
	"RIGHT": {}, "FULL": {}, "OUTER": {}, "CROSS": {}, "ON": {}, "AS": {},
	"AND": {}, "OR": {}, "NOT": {}, "IN": {}, "BETWEEN": {}, "LIKE": {},
	"IS": {}, "NULL": {}, "ASC": {}, "DESC": {},
}
