package commands_test

import (
	"encoding/json"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func add(t *testing.T, dir, title, value, typ, category string) (string, error) {
	t.Helper()
	return run(t, "add", "--repo", dir,
		"--title", title, "--value", value, "--type", typ, "--category", category)
}

type balanceJSON struct {
	Income  string `json:"income"`
	Outcome string `json:"outcome"`
	Total   string `json:"total"`
}

func balance(t *testing.T, dir string) balanceJSON {
	t.Helper()
	out, err := runStdout(t, "balance", "--repo", dir, "--json")
	require.NoError(t, err)
	var b balanceJSON
	require.NoError(t, json.Unmarshal([]byte(out), &b), out)
	return b
}

func TestAddAndBalance(t *testing.T) {
	for _, storage := range []string{"csv", "sqlite"} {
		t.Run(storage, func(t *testing.T) {
			dir := initProject(t, "--storage", storage)

			out, err := add(t, dir, "Salary", "1000", "income", "Salary")
			require.NoError(t, err, out)
			assert.Contains(t, out, "Recorded income 1000.00 Salary")
			assert.Equal(t, "1000", balance(t, dir).Total)

			out, err = add(t, dir, "Rent", "1200", "outcome", "Rent")
			require.Error(t, err)
			assert.Contains(t, out, "greater than the available balance")
			assert.Equal(t, "1000", balance(t, dir).Total)

			out, err = add(t, dir, "Rent", "300", "outcome", "Rent")
			require.NoError(t, err, out)
			b := balance(t, dir)
			assert.Equal(t, "1000", b.Income)
			assert.Equal(t, "300", b.Outcome)
			assert.Equal(t, "700", b.Total)
		})
	}
}

func TestAdd_InvalidType(t *testing.T) {
	dir := initProject(t)
	out, err := add(t, dir, "Gift", "10", "transfer", "Misc")
	require.Error(t, err)
	assert.Contains(t, out, "transaction type not allowed")
}

func TestAdd_InvalidValue(t *testing.T) {
	dir := initProject(t)
	out, err := add(t, dir, "Gift", "ten", "income", "Misc")
	require.Error(t, err)
	assert.Contains(t, out, "parsing --value")
}

func TestAdd_AutoCommits(t *testing.T) {
	dir := initProject(t)
	_, err := add(t, dir, "Salary", "1000", "income", "Salary")
	require.NoError(t, err)

	log := exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Equal(t, "add: income 1000.00 Salary", strings.TrimSpace(string(out)))
}

func TestTransactions(t *testing.T) {
	dir := initProject(t)
	_, err := add(t, dir, "Salary", "1000", "income", "Salary")
	require.NoError(t, err)
	_, err = add(t, dir, "Groceries", "45.50", "outcome", "Food")
	require.NoError(t, err)

	out, err := runStdout(t, "transactions", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "45.50")
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "Total:   954.50")

	out, err = runStdout(t, "transactions", "--repo", dir, "--json")
	require.NoError(t, err)
	var list struct {
		Transactions []struct {
			Title      string `json:"title"`
			Type       string `json:"type"`
			Value      string `json:"value"`
			CategoryID string `json:"category_id"`
		} `json:"transactions"`
		Balance balanceJSON `json:"balance"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list), out)
	require.Len(t, list.Transactions, 2)
	assert.Equal(t, "Salary", list.Transactions[0].Title)
	assert.Equal(t, "45.5", list.Transactions[1].Value)
	assert.NotEmpty(t, list.Transactions[1].CategoryID)
	assert.Equal(t, "954.5", list.Balance.Total)
}

func TestTransactions_EmptyJSON(t *testing.T) {
	dir := initProject(t)
	out, err := runStdout(t, "transactions", "--repo", dir, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"transactions": []`)
}

func TestCategories(t *testing.T) {
	dir := initProject(t)
	for _, c := range []string{"Salary", "Food", "Salary"} {
		_, err := add(t, dir, "x", "10", "income", c)
		require.NoError(t, err)
	}

	out, err := runStdout(t, "categories", "--repo", dir)
	require.NoError(t, err)
	assert.Equal(t, "Food\nSalary\n", out)
}
