package mcpserver

// DiscrepancyGuide describes the findings a check run reports so that LLM
// consumers can explain them.
const DiscrepancyGuide = `# metacheck Discrepancy Guide

A check run reports, for each file, a list of discrepancies. An empty list
means every source agrees. Each discrepancy carries:

- ` + "`kind`" + `: what went wrong (table below)
- ` + "`check`" + `: the check that produced it
- ` + "`severity`" + `: ` + "`error`" + ` or ` + "`warning`" + `
- ` + "`source_a`" + ` / ` + "`source_b`" + `: the sources compared (header, storage, lims, path, caller)
- ` + "`expected`" + ` / ` + "`actual`" + ` and ` + "`reason`" + ` when relevant

## Kinds

| kind | meaning |
|---|---|
| attribute_frequency | a single-valued attribute is missing or repeated |
| wrong_attribute_format | a value does not match its format (md5, qc flag, target, ACL entry) |
| wrong_reference_format | the reference is not a path to a .fa genome |
| unrecognized_identifier | a sample, library or study value is empty or a placeholder |
| identifier_not_found | an identifier in one source is absent from another |
| field_mismatch | run, lane, lanelet name or reference disagree between sources |
| checksum_mismatch | the recorded md5 differs from the stored content or a replica |
| wrong_reference | the file is aligned to another genome than requested |
| not_a_sequencing_path | the path is outside the sequencing collection layout |
| not_a_lanelet_name | the file name is not <run>[_<lane>][#<tag>] |
| access_control | no study group can read the file, or it is public |
| invalid_replica | a stored replica is marked stale |
| fetch_failed | a source could not be read; its checks were not run |
| check_skipped | a check lacked its inputs; the reason says which |

## Identifier classes

Values are split into ` + "`accession_number`" + ` (ERS12345, EGAN00001, SAMEA123),
` + "`internal_id`" + ` (all digits) and ` + "`name`" + ` (anything else). Identifiers are
only compared within the same class.
`
