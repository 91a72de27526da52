package cli

// PrintAnswer is exported for testing
var PrintAnswer = printAnswer
