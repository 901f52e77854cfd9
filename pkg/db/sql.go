/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"fmt"
	"strings"

	"github.com/carverauto/farmradar/pkg/models"
)

const (
	colMachineID   = "machine_id"
	colTimestamp   = "timestamp"
	colAction      = "action"
	colUpdatedAt   = "updated_at"
	colID          = "id"
	colMachineName = "machine_name"
	colLastContact = "last_contact"

	machinesTable = "machines"
)

// categorySQL is the SQL of one category, generated once from the registry.
type categorySQL struct {
	spec *models.CategorySpec

	createHistory string
	createLatest  string
	insertHistory string
	upsertLatest  string
	deleteLatest  string
	selectLatest  string
	selectHistory string
}

type machinesSQL struct {
	create    string
	upsert    string
	selectAll string
	selectOne string
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = quote(id)
	}

	return strings.Join(quoted, ", ")
}

func placeholders(d dialect, from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.placeholder(from + i)
	}

	return strings.Join(ps, ", ")
}

func columnNames(cols []models.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	return names
}

func buildCategorySQL(d dialect, spec *models.CategorySpec) *categorySQL {
	cols := spec.Columns()
	names := columnNames(cols)
	history := quote(spec.HistoryTable())
	latest := quote(spec.LatestTable())

	historyKey := []string{colMachineID, colTimestamp}
	latestKey := []string{colMachineID}

	if spec.Collection {
		historyKey = append(historyKey, colID)
		latestKey = append(latestKey, colID)
	}

	var hdef, ldef strings.Builder

	fmt.Fprintf(&hdef, "CREATE TABLE IF NOT EXISTS %s (\n", history)
	fmt.Fprintf(&hdef, "\t%s TEXT NOT NULL,\n", quote(colMachineID))
	fmt.Fprintf(&hdef, "\t%s %s NOT NULL,\n", quote(colTimestamp), d.columnType(models.KindTime))
	fmt.Fprintf(&hdef, "\t%s TEXT NOT NULL,\n", quote(colAction))

	fmt.Fprintf(&ldef, "CREATE TABLE IF NOT EXISTS %s (\n", latest)
	fmt.Fprintf(&ldef, "\t%s TEXT NOT NULL,\n", quote(colMachineID))
	fmt.Fprintf(&ldef, "\t%s %s NOT NULL,\n", quote(colUpdatedAt), d.columnType(models.KindTime))

	for _, c := range cols {
		fmt.Fprintf(&hdef, "\t%s %s,\n", quote(c.Name), d.columnType(c.Kind))
		fmt.Fprintf(&ldef, "\t%s %s,\n", quote(c.Name), d.columnType(c.Kind))
	}

	fmt.Fprintf(&hdef, "\tPRIMARY KEY (%s)\n)", quoteAll(historyKey))
	fmt.Fprintf(&ldef, "\tPRIMARY KEY (%s)\n)", quoteAll(latestKey))

	historyCols := append([]string{colMachineID, colTimestamp, colAction}, names...)
	latestCols := append([]string{colMachineID, colUpdatedAt}, names...)

	sets := []string{fmt.Sprintf("%s = EXCLUDED.%s", quote(colUpdatedAt), quote(colUpdatedAt))}

	for _, n := range names {
		if n == colID {
			continue
		}

		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(n), quote(n)))
	}

	deleteWhere := fmt.Sprintf("%s = %s", quote(colMachineID), d.placeholder(1))
	order := ""
	next := 2

	if spec.Collection {
		deleteWhere += fmt.Sprintf(" AND %s = %s", quote(colID), d.placeholder(next))
		order = " ORDER BY " + quote(colID)
		next++
	}

	// A replayed delete never removes a row written after it.
	deleteWhere += fmt.Sprintf(" AND %s <= %s", quote(colUpdatedAt), d.placeholder(next))

	historyOrder := quoteAll(historyKey)

	return &categorySQL{
		spec:          spec,
		createHistory: hdef.String(),
		createLatest:  ldef.String(),
		insertHistory: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
			history, quoteAll(historyCols), placeholders(d, 1, len(historyCols))),
		upsertLatest: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s WHERE %s.%s <= EXCLUDED.%s",
			latest, quoteAll(latestCols), placeholders(d, 1, len(latestCols)), quoteAll(latestKey),
			strings.Join(sets, ", "), latest, quote(colUpdatedAt), quote(colUpdatedAt)),
		deleteLatest: fmt.Sprintf("DELETE FROM %s WHERE %s", latest, deleteWhere),
		selectLatest: fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s%s",
			quoteAll(names), latest, quote(colMachineID), d.placeholder(1), order),
		selectHistory: fmt.Sprintf("SELECT %s FROM %s WHERE %s >= %s AND %s <= %s ORDER BY %s",
			quoteAll(historyCols), history, quote(colTimestamp), d.placeholder(1),
			quote(colTimestamp), d.placeholder(2), historyOrder),
	}
}

func buildMachinesSQL(d dialect) *machinesSQL {
	table := quote(machinesTable)
	cols := quoteAll([]string{colMachineID, colMachineName, colLastContact})

	return &machinesSQL{
		create: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s TEXT PRIMARY KEY,\n\t%s TEXT NOT NULL,\n\t%s %s NOT NULL\n)",
			table, quote(colMachineID), quote(colMachineName), quote(colLastContact), d.columnType(models.KindTime)),
		upsert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s",
			table, cols, placeholders(d, 1, 3), quote(colMachineID),
			quote(colMachineName), quote(colMachineName), quote(colLastContact), quote(colLastContact)),
		selectAll: fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", cols, table, quote(colMachineID)),
		selectOne: fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", cols, table, quote(colMachineID), d.placeholder(1)),
	}
}
