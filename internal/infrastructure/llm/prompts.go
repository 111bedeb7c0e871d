package llm

const extractionPrompt = `You are given scraped webpage content (HTML or plain text) that may contain HR or company policy information.

Your task is to extract all identifiable HR policies and return them in a clean, structured JSON array.

Follow these rules strictly:

1. Each JSON object must have exactly two fields:
   - "title": A short, human-readable name of the policy. Remove any numbers, symbols, or formatting.
     If no explicit heading exists, infer a reasonable title from context.
   - "description": A complete, self-contained paragraph summarizing the policy's intent, scope, and purpose in clear language.
     Use information from surrounding text if needed, but avoid lists, examples, or procedural details.

2. Merge fragments that belong to the same policy section.

3. Ignore any navigation text, footers, disclaimers, or unrelated content.

4. Output only a valid JSON array. No markdown, no prose, no extra keys, and no trailing commas.

5. Do not include explanations or additional commentary. Only return the final JSON.
`

const classificationPrompt = `You compare one target HR policy against a list of existing HR policies.

The user message is a JSON object with two keys:
- "target": an object with "title" and "description".
- "existing": an array of objects with "title" and "description".

Treat two policies as duplicates when their combined title and description convey substantially the
same underlying policy, with a similarity of 80 or more on a 0 to 100 scale. Paraphrasing, synonyms,
reordering and formatting differences do not make policies distinct. Policies that cover related but
materially different scope remain distinct, for example a general employee benefits policy and a
specific healthcare or medical insurance policy.

Answer with exactly one word and nothing else:
- Yes, if the target is unique and duplicates none of the existing policies.
- No, if the target duplicates at least one existing policy.
`
