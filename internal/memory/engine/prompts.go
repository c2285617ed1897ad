package engine

// Prompts sent to the memory LLM. All of them must answer with JSON only;
// responses are still run through extractJSON because smaller models like
// to wrap their output in markdown fences.

const factExtractionPrompt = `You are a Personal Information Organizer, specialized in accurately storing facts, user memories, and preferences. Your job is to extract relevant pieces of information from the conversation below and organize them into distinct, self-contained facts.

Types of information to remember:
1. Personal details: names, locations, relationships, important dates.
2. Preferences: likes, dislikes, and specific preferences in food, products, activities, entertainment.
3. Plans and intentions: upcoming events, trips, goals the user shared.
4. Activity and service preferences: dining, travel, hobbies.
5. Health and wellness details shared by the user.
6. Professional details: job titles, work habits, career goals.
7. Statements that reset or negate an attribute (for example "the user's name is unknown") must be kept as facts verbatim.

Rules:
- Preserve the language of the input. Chinese input produces Chinese facts.
- Each fact must stand on its own without the surrounding conversation.
- Do not return anything from the system or assistant turns unless the user confirmed it.
- If the conversation contains nothing worth remembering, return an empty list.

Return JSON of the form: {"facts": ["fact 1", "fact 2"]}`

const updateMemoryPrompt = `You are a smart memory manager which controls the memory of a system. You can perform four operations: (1) add into the memory, (2) update the memory, (3) delete from the memory, and (4) no change.

Compare each newly retrieved fact with the existing memory. For every fact, decide whether to:
- ADD: the fact contains new information not present in the memory. Generate a new id for it.
- UPDATE: the fact refines or corrects an existing memory element. Keep the same id and rewrite the text. If the new fact conveys the same thing as an existing element but with different wording, keep the version with more information.
- DELETE: the fact contradicts an existing memory element and invalidates it.
- NONE: the fact is already present or is irrelevant.

Guidelines:
- Only use ids that appear in the existing memory below for UPDATE and DELETE.
- A reset statement such as "用户的名字未知" UPDATEs the memory element that held the old value.
- Do not invent facts that were not retrieved.

Existing memory:
%s

Newly retrieved facts:
%s

Return JSON of the form:
{"memory": [{"id": "<id>", "text": "<memory text>", "event": "ADD|UPDATE|DELETE|NONE", "old_memory": "<previous text, only for UPDATE>"}]}`

const relationExtractionPrompt = `You extract knowledge graph triples from a single memory statement.

Rules:
- Output triples as {"source": ..., "relationship": ..., "destination": ...}.
- When the statement describes the user, the source entity must be exactly "用户".
- The relationship is the attribute or verb named in the statement, kept in the statement's language (for example 名字, 居住地, 喜欢).
- A statement that an attribute is unknown still produces a triple with destination "未知".
- Return an empty list if the statement names no entities.

Statement:
%s

Return JSON of the form: {"relations": [{"source": "...", "relationship": "...", "destination": "..."}]}`

const entityExtractionPrompt = `List the entities mentioned in the search query below. Include "用户" whenever the query refers to the user or their attributes. Keep entity names in the query's language.

Query:
%s

Return JSON of the form: {"entities": ["entity 1", "entity 2"]}`
