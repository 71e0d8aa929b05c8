package battle

// BoardSize is the width and height of the battle board.
const BoardSize = 10

// monsterMinX is the first column of the monster half of the board.
const monsterMinX = 6

// PlayerPosition returns the board cell for the i-th player: three per
// column, filling columns 0..2.
func PlayerPosition(i int) Position {
	return Position{X: min(2, i/3), Y: i % 3}
}

// MonsterColumns is the number of columns monsters may occupy.
const MonsterColumns = BoardSize - monsterMinX

// MonsterPosition maps raw column and row draws onto the monster half of the board.
func MonsterPosition(col, row int) Position {
	return Position{X: monsterMinX + col%MonsterColumns, Y: row % BoardSize}
}
